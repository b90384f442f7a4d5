package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	v1 "closet/shared/contracts/auth/v1"
)

// Item is a closet item as returned by the API.
type Item struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user"`
	Title      string    `json:"title"`
	Categories []string  `json:"categories"`
	Colors     []string  `json:"colors"`
	Photo      string    `json:"photo"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ItemInput is the create/update form. On update, nil lists and an empty
// Title are left unchanged.
type ItemInput struct {
	Title      string
	Categories []string
	Colors     []string

	// Photo is optional on update. PhotoName and PhotoType describe it.
	Photo     io.Reader
	PhotoName string
	PhotoType string
}

// API is the authenticated surface of the closet server. Requests go
// through the session's Transport.
type API struct {
	s *Session
}

// API returns the request surface bound to s.
func (s *Session) API() *API { return &API{s: s} }

// Me returns the signed-in user and refreshes the cached copy.
func (a *API) Me(ctx context.Context) (v1.User, error) {
	var body v1.MeResponse
	if err := a.getJSON(ctx, v1.PathMe, &body); err != nil {
		return v1.User{}, err
	}
	if body.Data.User == nil {
		return v1.User{}, fmt.Errorf("client: me response without user")
	}

	u := *body.Data.User
	a.s.mu.Lock()
	if a.s.token != "" {
		a.s.user = &u
	}
	a.s.mu.Unlock()
	return u, nil
}

// UpdatePassword changes the password. The server answers with a fresh
// token pair, which replaces the cached one.
func (a *API) UpdatePassword(ctx context.Context, current, password, confirm string) error {
	b, err := json.Marshal(v1.UpdatePasswordRequest{
		PasswordCurrent: current,
		Password:        password,
		PasswordConfirm: confirm,
	})
	if err != nil {
		return err
	}
	res, err := a.s.do(ctx, http.MethodPatch, v1.PathUpdatePassword, b, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	var body v1.AuthResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("client: decode auth response: %w", err)
	}
	if body.Token == "" || body.Data.User == nil {
		return fmt.Errorf("client: auth response without token or user")
	}
	a.s.setSession(body.Token, *body.Data.User)
	return nil
}

// ListClosets returns every item of the signed-in user.
func (a *API) ListClosets(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := a.getJSON(ctx, v1.PathClosets, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetCloset returns one item.
func (a *API) GetCloset(ctx context.Context, id string) (Item, error) {
	var it Item
	err := a.getJSON(ctx, v1.PathClosets+"/"+url.PathEscape(id), &it)
	return it, err
}

// CreateCloset uploads a new item. Photo is required by the server.
func (a *API) CreateCloset(ctx context.Context, in ItemInput) (Item, error) {
	body, ctype, err := in.multipart(true)
	if err != nil {
		return Item{}, err
	}
	res, err := a.s.do(ctx, http.MethodPost, v1.PathClosets, body, ctype)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = res.Body.Close() }()

	var env struct {
		Status string `json:"status"`
		Data   Item   `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return Item{}, fmt.Errorf("client: decode item: %w", err)
	}
	return env.Data, nil
}

// UpdateCloset applies in to the item id.
func (a *API) UpdateCloset(ctx context.Context, id string, in ItemInput) (Item, error) {
	body, ctype, err := in.multipart(false)
	if err != nil {
		return Item{}, err
	}
	res, err := a.s.do(ctx, http.MethodPatch, v1.PathClosets+"/"+url.PathEscape(id), body, ctype)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = res.Body.Close() }()

	var it Item
	if err := json.NewDecoder(res.Body).Decode(&it); err != nil {
		return Item{}, fmt.Errorf("client: decode item: %w", err)
	}
	return it, nil
}

// DeleteCloset removes the item and its photo.
func (a *API) DeleteCloset(ctx context.Context, id string) error {
	res, err := a.s.do(ctx, http.MethodDelete, v1.PathClosets+"/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// Image downloads a rendered item photo (JPEG).
func (a *API) Image(ctx context.Context, filename string) ([]byte, error) {
	res, err := a.s.do(ctx, http.MethodGet, v1.PathClosets+"/image/"+url.PathEscape(filename), nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	return io.ReadAll(res.Body)
}

func (a *API) getJSON(ctx context.Context, path string, dst any) error {
	res, err := a.s.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

// multipart encodes the form. The body is buffered so the transport can
// replay it on retry.
func (in ItemInput) multipart(create bool) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if in.Title != "" || create {
		if err := mw.WriteField("title", in.Title); err != nil {
			return nil, "", err
		}
	}
	for _, f := range []struct {
		name   string
		values []string
	}{{"categories", in.Categories}, {"colors", in.Colors}} {
		if f.values == nil {
			continue
		}
		if len(f.values) == 0 {
			// An empty value clears the list.
			if err := mw.WriteField(f.name, ""); err != nil {
				return nil, "", err
			}
			continue
		}
		for _, v := range f.values {
			if err := mw.WriteField(f.name, v); err != nil {
				return nil, "", err
			}
		}
	}

	if in.Photo != nil {
		name := in.PhotoName
		if name == "" {
			name = "photo"
		}
		ctype := in.PhotoType
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, name))
		h.Set("Content-Type", ctype)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, in.Photo); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
