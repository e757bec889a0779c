package driven

// ProfileDirs manages the on-disk directory of each profile. Names are
// sanitized by the implementation; a name that sanitizes to "" is a silent
// no-op for both Create and Delete.
type ProfileDirs interface {
	Create(name string) error
	Delete(name string) error
	// List returns the names of existing profile directories.
	List() ([]string, error)
}
