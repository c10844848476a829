package identity

import (
	"encoding/json"
	"os"
)

// session is what survives between CLI invocations: who is signed in and
// the token proving it.
type session struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func saveSession(path string, s session) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(s)
}

func loadSession(path string) (session, error) {
	f, err := os.Open(path)
	if err != nil {
		return session{}, err
	}
	defer f.Close()
	var s session
	err = json.NewDecoder(f).Decode(&s)
	return s, err
}
