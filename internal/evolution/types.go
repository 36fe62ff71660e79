package evolution

import (
	"encoding/json"
	"strings"
	"time"
)

// Instance is the normalized view of one entry from /instance/fetchInstances.
type Instance struct {
	Name         string
	Status       string // raw gateway state string ("open", "qrcode", ...)
	OwnerJID     string
	ProfileName  string
	Integration  string
	MessageCount *int
	ContactCount *int
	ChatCount    *int
	UpdatedAt    string
}

// ParsedUpdatedAt returns the UpdatedAt timestamp as time.Time when possible.
func (i Instance) ParsedUpdatedAt() time.Time {
	return parseTime(i.UpdatedAt)
}

// instanceRecord accepts both list shapes the gateway has shipped: the flat v2
// record and the v1 record nested under "instance".
type instanceRecord struct {
	Name             string       `json:"name"`
	ConnectionStatus string       `json:"connectionStatus"`
	ConnectionState  string       `json:"connectionState"`
	Status           string       `json:"status"`
	State            string       `json:"state"`
	OwnerJID         string       `json:"ownerJid"`
	Owner            string       `json:"owner"`
	ProfileName      string       `json:"profileName"`
	Integration      string       `json:"integration"`
	UpdatedAt        string       `json:"updatedAt"`
	Count            *countRecord `json:"_count"`

	Nested *nestedInstance `json:"instance"`
}

type nestedInstance struct {
	InstanceName string `json:"instanceName"`
	Status       string `json:"status"`
	State        string `json:"state"`
	Owner        string `json:"owner"`
	ProfileName  string `json:"profileName"`
	Integration  string `json:"integration"`
}

type countRecord struct {
	Message *int `json:"Message"`
	Contact *int `json:"Contact"`
	Chat    *int `json:"Chat"`
}

func (r instanceRecord) normalize() Instance {
	inst := Instance{
		Name:        strings.TrimSpace(r.Name),
		Status:      firstNonEmpty(r.ConnectionStatus, r.ConnectionState, r.Status, r.State),
		OwnerJID:    firstNonEmpty(r.OwnerJID, r.Owner),
		ProfileName: r.ProfileName,
		Integration: r.Integration,
		UpdatedAt:   r.UpdatedAt,
	}
	if n := r.Nested; n != nil {
		if inst.Name == "" {
			inst.Name = strings.TrimSpace(n.InstanceName)
		}
		if inst.Status == "" {
			inst.Status = firstNonEmpty(n.Status, n.State)
		}
		if inst.OwnerJID == "" {
			inst.OwnerJID = n.Owner
		}
		if inst.ProfileName == "" {
			inst.ProfileName = n.ProfileName
		}
		if inst.Integration == "" {
			inst.Integration = n.Integration
		}
	}
	if c := r.Count; c != nil {
		inst.MessageCount = c.Message
		inst.ContactCount = c.Contact
		inst.ChatCount = c.Chat
	}
	return inst
}

// PairingPayload is whatever pairing material a connect, create or qrcode call
// returned. Any field may be empty; HasArtifact reports whether there is
// anything usable.
type PairingPayload struct {
	Image       []byte // decoded image bytes
	ImageType   string // MIME type from the data URI, "image/png" when unknown
	Code        string // raw QR payload text
	PairingCode string // short phone pairing code
}

// HasArtifact reports whether the payload carries an image or QR text.
func (p PairingPayload) HasArtifact() bool {
	return len(p.Image) > 0 || strings.TrimSpace(p.Code) != ""
}

// qrRecord covers the field names used by the connect endpoint and the
// dedicated qrcode endpoint.
type qrRecord struct {
	Base64      string `json:"base64"`
	Code        string `json:"code"`
	PairingCode string `json:"pairingCode"`
	Artifact    string `json:"artifact"`
	Count       int    `json:"count"`
}

type pairingEnvelope struct {
	qrRecord
	QRCode json.RawMessage `json:"qrcode"`
}

// CreateRequest is the body of POST /instance/create.
type CreateRequest struct {
	InstanceName string `json:"instanceName"`
	QRCode       bool   `json:"qrcode"`
	Integration  string `json:"integration,omitempty"`
}

const defaultIntegration = "WHATSAPP-BAILEYS"

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
