package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/audio-recorder/internal/app"
	"github.com/petems/audio-recorder/internal/logging"
)

// volumePresets are the volumes offered in the tray menu.
var volumePresets = []int{0, 25, 50, 80, 100}

type UI struct {
	app     *app.App
	version string
	commit  string
	log     zerolog.Logger
	onQuit  func()

	mStatus     *systray.MenuItem
	mVolume     *systray.MenuItem
	volumeItems map[int]*systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetCapturing() {
	u.updateStatus("capturing")
}

func (u *UI) SetStopped() {
	u.updateStatus("stopped")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

// New creates the tray UI. onQuit is called when the user picks Quit.
func New(application *app.App, version, commit string, log zerolog.Logger, onQuit func()) *UI {
	return &UI{
		app:     application,
		version: version,
		commit:  commit,
		log:     log,
		onQuit:  onQuit,
	}
}

// Run blocks until the tray exits. It MUST run on the main thread.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus("stopped")
	systray.SetTooltip("Audio recorder")

	u.mStatus = systray.AddMenuItem("Starting...", "Capture status")
	u.mStatus.Disable()
	systray.AddSeparator()

	u.mVolume = systray.AddMenuItem(volumeTitle(u.app.Volume()), "Playback volume")
	u.buildVolumeMenu()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About audio-recorder")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			if u.onQuit != nil {
				u.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildVolumeMenu() {
	u.volumeItems = make(map[int]*systray.MenuItem, len(volumePresets))
	current := u.app.Volume()

	for _, v := range volumePresets {
		item := u.mVolume.AddSubMenuItemCheckbox(fmt.Sprintf("%d%%", v), "", v == current)
		u.volumeItems[v] = item

		go func(volume int, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				u.selectVolume(volume)
			}
		}(v, item)
	}
}

func (u *UI) selectVolume(volume int) {
	old := u.app.Volume()
	if err := u.app.SetVolume(volume); err != nil {
		u.log.Error().Err(err).Int("volume", volume).Msg("Failed to change volume")
		u.SetError()
		return
	}

	for v, itm := range u.volumeItems {
		if v == volume {
			itm.Check()
		} else {
			itm.Uncheck()
		}
	}
	u.mVolume.SetTitle(volumeTitle(volume))
	u.log.Info().Int("from", old).Int("to", volume).Msg("Changed volume")
}

func (u *UI) openLogs() {
	path := logging.Path()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		u.log.Error().Err(err).Str("path", path).Msg("Failed to open logs")
		return
	}
	go cmd.Wait()
}

// showAbout prints the version to stdout and the log; systray has no
// dialog API.
func (u *UI) showAbout() {
	text := aboutText(u.version, u.commit)
	fmt.Println(text)
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("About")
}

func aboutText(version, commit string) string {
	return fmt.Sprintf("audio-recorder %s (%s)\nMicrophone capture with volume control", version, commit)
}

func (u *UI) onExit() {
	// Cleanup
}

// updateStatus sets the tray title and status line for the capture state
func (u *UI) updateStatus(status string) {
	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForStatus(status)))
	if u.mStatus != nil {
		u.mStatus.SetTitle(statusLabel(status))
	}
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "capturing":
		return "🔴" // Red - capturing
	case "stopped":
		return "🟢" // Green - idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢"
	}
}

func statusLabel(status string) string {
	switch status {
	case "capturing":
		return "Capturing"
	case "error":
		return "Capture failed"
	default:
		return "Stopped"
	}
}

func volumeTitle(volume int) string {
	return fmt.Sprintf("Volume: %d%%", volume)
}
