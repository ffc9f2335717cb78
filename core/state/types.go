package state

// Manager stores at most one session of type S per user.
type Manager[S any] interface {
	Get(userID int64) (S, bool)
	Set(userID int64, session S)
	// Take removes and returns the session, reporting whether one existed.
	Take(userID int64) (S, bool)
	Clear(userID int64)

	InProgress(userID int64) bool
	Len() int
}
