package ui

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/courier/internal/instance"
)

// artifactPath returns where the pairing image for name is written.
func artifactPath(dir, name, imageType string) string {
	ext := ".png"
	switch strings.ToLower(strings.TrimSpace(imageType)) {
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "image/svg+xml":
		ext = ".svg"
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(dir, "pairing-"+safe+ext)
}

// writeArtifact writes the image atomically and returns its path. An artifact
// without an image writes nothing.
func writeArtifact(dir, name string, art instance.Artifact) (string, error) {
	if len(art.Image) == 0 {
		return "", nil
	}
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("no artifact directory configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := artifactPath(dir, name, art.ImageType)
	tmp, err := os.CreateTemp(dir, ".pairing-*")
	if err != nil {
		return "", fmt.Errorf("write pairing image: %w", err)
	}
	if _, err := tmp.Write(art.Image); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write pairing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write pairing image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write pairing image: %w", err)
	}
	return path, nil
}

// artifactKey identifies one fetched artifact. The image digest catches a
// rotated image even when the fetch carries no id.
func artifactKey(art instance.Artifact) string {
	sum := sha256.Sum256(art.Image)
	return art.AttemptID + "/" + art.FetchID + "/" + hex.EncodeToString(sum[:8])
}

func saveArtifactCmd(dir, name, key string, art instance.Artifact) tea.Cmd {
	return func() tea.Msg {
		path, err := writeArtifact(dir, name, art)
		return artifactSavedMsg{key: key, path: path, err: err}
	}
}

// renderPairing renders the pairing panel shown while waiting for a scan.
func (m Model) renderPairing(width int) string {
	styles := m.theme.Styles()
	st := m.snapshot.Instance
	var b strings.Builder

	b.WriteString(styles.AccentText.Bold(true).Render("Pair this device"))
	b.WriteString("\n")

	art := st.Artifact
	switch {
	case art == nil && st.ArtifactLoading:
		b.WriteString(styles.MutedText.Render(m.spinner.View() + " Fetching QR code..."))
		return styles.Card.Width(width).Render(b.String())
	case art == nil:
		b.WriteString(styles.WarningText.Render("No QR code yet. Press g to request one."))
		return styles.Card.Width(width).Render(b.String())
	}

	b.WriteString(styles.Text.Render("Open WhatsApp > Linked devices > Link a device."))
	b.WriteString("\n\n")
	if code := formatPairingCode(art.PairingCode); code != "" {
		b.WriteString(field(styles, "Pairing code", styles.SuccessText.Render(code)))
	}
	current := m.artifactKey == artifactKey(*art)
	switch {
	case m.artifactErr != nil && current:
		b.WriteString(field(styles, "QR image", styles.DangerText.Render(m.artifactErr.Error())))
	case m.artifactFile != "" && current:
		b.WriteString(field(styles, "QR image", styles.Text.Render(truncateMiddle(m.artifactFile, width-20))))
	case len(art.Image) == 0 && art.Code != "":
		b.WriteString(field(styles, "QR payload", styles.MutedText.Render(truncate(art.Code, width-20))))
	}
	fetched := art.ObtainedAt.Local().Format("15:04:05")
	if art.Source != "" {
		fetched += " via " + string(art.Source)
	}
	b.WriteString(field(styles, "Fetched", styles.MutedText.Render(fetched)))
	if st.ArtifactLoading {
		b.WriteString(styles.MutedText.Render(m.spinner.View() + " refreshing..."))
	}
	return styles.Card.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

// formatPairingCode groups a bare 8-character code as XXXX-XXXX.
func formatPairingCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 8 && !strings.Contains(code, "-") {
		return code[:4] + "-" + code[4:]
	}
	return code
}
