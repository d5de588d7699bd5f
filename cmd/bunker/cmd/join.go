package cmd

import (
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/emiliancristea/bunker-sharescreen/internal/session"
	"github.com/emiliancristea/bunker-sharescreen/internal/settings"
	"github.com/emiliancristea/bunker-sharescreen/internal/signalclient"
	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
	"github.com/emiliancristea/bunker-sharescreen/internal/tui"
)

var (
	joinServer string
	joinFPS    int
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and watch or share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := signaling.NormalizeRoomID(args[0])
		if !signaling.ValidateRoomID(roomID) {
			return signaling.ErrInvalidRoomID
		}

		prefs := settings.Defaults()
		sm, err := settings.NewManager()
		if err == nil {
			prefs, _ = sm.Load()
		}

		fps := prefs.FrameRate
		if cmd.Flags().Changed("fps") {
			fps = joinFPS
			prefs.FrameRate = fps
			if sm != nil {
				if err := sm.Save(prefs); err != nil {
					log.Printf("Failed to save settings: %v", err)
				}
			}
		}

		server := joinServer
		if server == "" {
			server = prefs.Server
		}
		if server == "" {
			server = "ws://localhost:3050/ws"
		}

		client := signalclient.NewClient(server)
		if err := client.Connect(); err != nil {
			return err
		}
		defer client.Close()

		manager := session.NewManager(session.Config{
			Room:      roomID,
			Channel:   client,
			Source:    session.NewSampleSource(),
			FrameRate: fps,
		})

		program := tea.NewProgram(tui.New(manager))

		manager.SetChangeCallback(func() {
			program.Send(tui.StateChangedMsg{})
		})

		go dispatch(client, manager, program)

		if err := client.JoinRoom(roomID); err != nil {
			return err
		}

		_, err = program.Run()
		return err
	},
}

// dispatch feeds server events into the session manager and mirrors
// lifecycle changes into the TUI. It exits when the connection drops.
func dispatch(client *signalclient.Client, manager *session.Manager, program *tea.Program) {
	for msg := range client.Incoming() {
		switch msg.Event {
		case signaling.EventRoomJoined:
			program.Send(tui.StateChangedMsg{})

		case signaling.EventRoomError:
			program.Send(tui.ErrMsg{Err: fmt.Errorf("join failed: %s", msg.Error)})
			program.Quit()
			return

		case signaling.EventExistingUsers:
			manager.SetExistingUsers(msg.Users)

		case signaling.EventUserJoined:
			manager.HandleUserJoined(msg.UserID)

		case signaling.EventUserLeft:
			manager.HandleUserLeft(msg.UserID)

		case signaling.EventStartedSharing, signaling.EventCurrentSharer:
			manager.HandleSharerStarted(msg.UserID)

		case signaling.EventStoppedSharing:
			manager.HandleSharerStopped(msg.UserID)

		case signaling.EventOffer:
			manager.HandleOffer(msg.UserID, msg.Description)

		case signaling.EventAnswer:
			manager.HandleAnswer(msg.UserID, msg.Description)

		case signaling.EventCandidate:
			manager.HandleCandidate(msg.UserID, msg.Candidate)

		default:
			log.Printf("Unknown event: %q", msg.Event)
		}
	}

	manager.Close()
	program.Send(tui.DisconnectedMsg{})
}

func init() {
	joinCmd.Flags().StringVarP(&joinServer, "server", "s", "", "signaling server URL (ws://host:port/ws)")
	joinCmd.Flags().IntVar(&joinFPS, "fps", session.DefaultFrameRate, "target frame rate when sharing")
	rootCmd.AddCommand(joinCmd)
}
