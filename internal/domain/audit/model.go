package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var ErrInvalid = errors.New("invalid audit entry")

const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

var validActions = map[string]bool{
	ActionCreate: true,
	ActionRead:   true,
	ActionUpdate: true,
	ActionDelete: true,
	ActionLogin:  true,
	ActionLogout: true,
}

// Log is one row of the append-only audit trail. HashChain links each row
// to its predecessor.
type Log struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"user_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	RequestID    string    `json:"request_id"`
	StatusCode   int       `json:"status_code"`
	CreatedAt    time.Time `json:"created_at"`
	HashChain    string    `json:"hash_chain"`
}

// ComputeHash returns SHA-256 over prevHash and the entry's canonical JSON.
// CreatedAt is hashed in UTC at microsecond precision so the value survives a
// round trip through Postgres.
func (l *Log) ComputeHash(prevHash string) string {
	data := map[string]string{
		"id":            l.ID.String(),
		"user_id":       l.UserID,
		"action":        l.Action,
		"resource_type": l.ResourceType,
		"resource_id":   l.ResourceID,
		"details":       l.Details,
		"ip_address":    l.IPAddress,
		"user_agent":    l.UserAgent,
		"request_id":    l.RequestID,
		"status_code":   strconv.Itoa(l.StatusCode),
		"created_at":    l.CreatedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	}
	// map keys marshal sorted
	payload, _ := json.Marshal(data)
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

type Filter struct {
	UserID       string
	ResourceType string
}

// Verification reports the outcome of walking the chain oldest first.
type Verification struct {
	Checked  int        `json:"checked"`
	Valid    bool       `json:"valid"`
	BrokenAt *uuid.UUID `json:"broken_at,omitempty"`
}
