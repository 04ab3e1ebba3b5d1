package farm

import "errors"

var (
	// ErrPanelNotFound indicates an unknown panel id.
	ErrPanelNotFound = errors.New("farm: panel not found")
	// ErrSectorNotFound indicates a sector with no panels.
	ErrSectorNotFound = errors.New("farm: sector not found")
	// ErrAlertNotFound indicates an unknown alert id.
	ErrAlertNotFound = errors.New("farm: alert not found")
	// ErrInvalidReading rejects malformed sensor input before any mutation.
	ErrInvalidReading = errors.New("farm: invalid sensor reading")
	// ErrInvalidPanel rejects upserts that would break panel identity.
	ErrInvalidPanel = errors.New("farm: invalid panel")
)
