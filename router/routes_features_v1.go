package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	TIMEOUT_REQUEST = time.Second * 5
)

func addFeaturesV1(router *http.ServeMux, b *Backbone) {
	router.HandleFunc("GET /v1/users/emails", b.eHand(b.readUserEmails))
	router.HandleFunc("GET /v1/fields/name", b.eHand(b.readFieldName))
}

type emailsReply struct {
	Emails []string `json:"emails"`
}

type fieldReply struct {
	FieldName string `json:"field_name"`
}

func (b *Backbone) readUserEmails(w http.ResponseWriter, req *http.Request) error {
	timer, cancel := context.WithTimeout(req.Context(), TIMEOUT_REQUEST)
	defer cancel()

	b.mu.Lock()
	emails, err := b.Fixtures.FetchUserEmails(timer)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	return writeJSON(w, emailsReply{Emails: emails})
}

func (b *Backbone) readFieldName(w http.ResponseWriter, req *http.Request) error {
	timer, cancel := context.WithTimeout(req.Context(), TIMEOUT_REQUEST)
	defer cancel()

	b.mu.Lock()
	name, err := b.Fixtures.FetchFieldName(timer)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	return writeJSON(w, fieldReply{FieldName: name})
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
