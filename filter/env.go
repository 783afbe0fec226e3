package filter

/*
Here the Env used in the directory advertisement filter is defined.
Once this struct is fixed, it should not be changed, otherwise filter
expressions in deployed configurations may not compile any more
(f.e. if properties are renamed etc.)
*/

type Env struct {
	Id          int
	Description string
	Players     int
	MaxPlayers  int
}
