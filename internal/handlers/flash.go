package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const (
	flashCookieName = "flash"
	flashMaxAge     = 60
	// maxFlashMessages bounds the cookie size when redirects pile messages up
	maxFlashMessages = 5
)

// Flash categories
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// FlashMessage is a one-time notice shown on the next page
type FlashMessage struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FlashResponse is the body of GET /flash
type FlashResponse struct {
	Messages []FlashMessage `json:"messages"`
}

// SetFlash queues a message for the next page. Messages not yet shown are kept.
func SetFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	messages := readFlashes(r)
	messages = append(messages, FlashMessage{Category: category, Message: message})
	if len(messages) > maxFlashMessages {
		messages = messages[len(messages)-maxFlashMessages:]
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes returns the queued messages and clears them
func PopFlashes(w http.ResponseWriter, r *http.Request) []FlashMessage {
	messages := readFlashes(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return messages
}

// readFlashes decodes the flash cookie. A tampered or malformed cookie reads as empty.
func readFlashes(r *http.Request) []FlashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}

	var messages []FlashMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}

	return messages
}
