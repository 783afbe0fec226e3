package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "rwe-lobby",
	Level: hclog.LevelFromString("INFO"),
})
