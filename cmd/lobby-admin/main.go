package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rwe-net/lobby-server/client"
	"github.com/rwe-net/lobby-server/types"
	"github.com/spf13/cobra"
)

// A very simple CLI tool for inspecting and seeding the lobby directory.

var (
	serverURL string
	timeout   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lobby-admin",
		Short: "inspect and seed the rwe-lobby directory",
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "ws://localhost:5000/master", "directory websocket URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	gamesCmd := &cobra.Command{
		Use:   "games",
		Short: "list currently advertised games",
		RunE:  runGames,
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "create a new game and print its admin key",
		RunE:  runCreate,
	}
	createCmd.Flags().StringP("description", "d", "", "game description")
	createCmd.Flags().IntP("max-players", "n", 10, "room capacity")
	_ = createCmd.MarkFlagRequired("description")

	rootCmd.AddCommand(gamesCmd, createCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGames(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	m, err := client.DialMaster(ctx, serverURL)
	if err != nil {
		return err
	}
	defer m.Close()

	// the server pushes the snapshot on connect
	for {
		select {
		case ev, ok := <-m.Events:
			if !ok {
				return fmt.Errorf("connection closed before snapshot arrived")
			}
			if games, ok := ev.(*types.GetGamesResponsePayload); ok {
				for _, item := range games.Games {
					fmt.Printf("%d\t%s\t%d/%d\n", item.ID, item.Game.Description, item.Game.Players, item.Game.MaxPlayers)
				}
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")
	maxPlayers, _ := cmd.Flags().GetInt("max-players")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	m, err := client.DialMaster(ctx, serverURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.CreateGame(description, maxPlayers); err != nil {
		return err
	}
	for {
		select {
		case ev, ok := <-m.Events:
			if !ok {
				return fmt.Errorf("connection closed before response arrived")
			}
			if resp, ok := ev.(*types.CreateGameResponsePayload); ok {
				fmt.Printf("game_id: %d\nadmin_key: %s\n", resp.GameID, resp.AdminKey)
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
