package detection

import "errors"

var (
	// ErrInvalidThreshold indicates a caller-supplied confidence threshold
	// outside the 0–100 range.
	ErrInvalidThreshold = errors.New("confidence threshold must be between 0 and 100")
	// ErrNotEnoughMembers indicates a guild with fewer than two members,
	// which can never yield a group.
	ErrNotEnoughMembers = errors.New("guild has fewer than two members")
	// ErrScanBusy indicates another scan currently holds the guild's lock.
	ErrScanBusy = errors.New("a scan is already running for this guild")
	// ErrPermissionDenied indicates the bot lacks permission to read the
	// guild's member list.
	ErrPermissionDenied = errors.New("missing permission to read the member list")
	// ErrTransportFailure indicates the roster could not be fetched even
	// after retries.
	ErrTransportFailure = errors.New("failed to fetch guild roster")
	// ErrPersistenceFailed indicates the member snapshot could not be
	// stored, so analysis was not attempted.
	ErrPersistenceFailed = errors.New("failed to persist member snapshot")
	// ErrNoStoredSnapshot indicates a stored-snapshot re-analysis was
	// requested before any scan captured a roster for the guild.
	ErrNoStoredSnapshot = errors.New("no stored member snapshot for this guild")
)
