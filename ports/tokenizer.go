package ports

// LinkTokenizer converts between users and signed verify-link tokens
type LinkTokenizer interface {
	UserToToken(userID int64) (string, error)
	TokenToUser(token string) (int64, error)
}
