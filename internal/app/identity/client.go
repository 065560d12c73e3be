package identity

import (
	"context"
	"strings"
)

// Client is the sign-in/sign-out surface consumed by views: it drives the
// identity service and keeps the session cell current. Auth failures leave
// the cell untouched.
type Client struct {
	Service *Service
	Cell    *SessionCell

	refreshToken string
}

func NewClient(service *Service, cell *SessionCell) *Client {
	return &Client{Service: service, Cell: cell}
}

func (c *Client) SignIn(ctx context.Context, username, password string) (Session, error) {
	resp, err := c.Service.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	session := sessionFromAuth(resp)
	c.refreshToken = resp.RefreshToken
	c.Cell.Set(session)
	return session, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if strings.TrimSpace(c.refreshToken) != "" {
		if err := c.Service.Logout(ctx, c.refreshToken); err != nil {
			return err
		}
	}
	c.refreshToken = ""
	c.Cell.Clear()
	return nil
}

func sessionFromAuth(resp AuthResponse) Session {
	displayName := resp.DisplayName
	if displayName == "" {
		displayName = resp.Username
	}
	return Session{
		UserID:      resp.UserID,
		DisplayName: displayName,
		AvatarURL:   resp.AvatarURL,
	}
}
