package ledger

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// WorkerKind distinguishes the two contractor populations. It is parsed once where data
// enters the system and carried as a closed value afterwards.
type WorkerKind uint8

const (
	KindUnknown WorkerKind = iota
	KindCaregiver
	KindHousekeeper
)

func ParseWorkerKind(s string) (WorkerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "caregiver":
		return KindCaregiver, nil
	case "housekeeper":
		return KindHousekeeper, nil
	default:
		return KindUnknown, fmt.Errorf("unknown worker kind %q", s)
	}
}

func (k WorkerKind) String() string {
	switch k {
	case KindCaregiver:
		return "caregiver"
	case KindHousekeeper:
		return "housekeeper"
	default:
		return "unknown"
	}
}

func (k WorkerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *WorkerKind) UnmarshalText(b []byte) error {
	parsed, err := ParseWorkerKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (WorkerKind) GormDataType() string {
	return "string"
}

// Value stores the kind as its text form.
func (k WorkerKind) Value() (driver.Value, error) {
	if k == KindUnknown {
		return nil, fmt.Errorf("cannot persist unknown worker kind")
	}
	return k.String(), nil
}

func (k *WorkerKind) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return k.UnmarshalText([]byte(v))
	case []byte:
		return k.UnmarshalText(v)
	case nil:
		*k = KindUnknown
		return nil
	default:
		return fmt.Errorf("cannot scan %T into WorkerKind", src)
	}
}

// WorkerRef is a worker resolved at the boundary: id plus kind.
type WorkerRef struct {
	ID   int64      `json:"id"`
	Kind WorkerKind `json:"kind"`
}

func (w WorkerRef) String() string {
	return fmt.Sprintf("%s:%d", w.Kind, w.ID)
}
