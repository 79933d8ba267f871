package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestBuildMIME_AlternativeAndAttachment(t *testing.T) {
	msg := Message{
		To:      "ops@example.com",
		Subject: "Daily Report - Mar 14, 2024",
		HTML:    "<p>Total calls: 3</p>",
		Text:    "Total calls: 3",
		Attachments: []Attachment{{
			Filename:    "calls.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        bytes.Repeat([]byte("x"), 200),
		}},
	}
	out, err := buildMsg("reports@example.com", msg, "id@example.com", time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var raw bytes.Buffer
	if _, err := out.WriteTo(&raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := mail.ReadMessage(&raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(m.Header.Get("Subject"))
	if err != nil || subject != msg.Subject {
		t.Fatalf("unexpected subject %q (%v)", subject, err)
	}
	if m.Header.Get("Message-ID") != "<id@example.com>" {
		t.Fatalf("unexpected message id %q", m.Header.Get("Message-ID"))
	}

	mt, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/mixed" {
		t.Fatalf("unexpected content type %q", mt)
	}
	mr := multipart.NewReader(m.Body, params["boundary"])

	first, err := mr.NextPart()
	if err != nil {
		t.Fatalf("first part: %v", err)
	}
	altType, altParams, _ := mime.ParseMediaType(first.Header.Get("Content-Type"))
	if altType != "multipart/alternative" {
		t.Fatalf("expected alternative part, got %q", altType)
	}
	ar := multipart.NewReader(first, altParams["boundary"])
	var kinds []string
	for {
		p, err := ar.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("alt part: %v", err)
		}
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		kinds = append(kinds, ct)
	}
	if strings.Join(kinds, ",") != "text/plain,text/html" {
		t.Fatalf("unexpected alternative parts %v", kinds)
	}

	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != "calls.xlsx" {
		t.Fatalf("unexpected filename %q", att.FileName())
	}
}

func TestBuildMsg_HTMLOnly(t *testing.T) {
	out, err := buildMsg("reports@example.com", Message{To: "ops@example.com", Subject: "s", HTML: "<p>hi</p>"}, "id@example.com", time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var raw bytes.Buffer
	if _, err := out.WriteTo(&raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := mail.ReadMessage(&raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mt, _, _ := mime.ParseMediaType(m.Header.Get("Content-Type")); mt != "text/html" {
		t.Fatalf("expected a single html part, got %q", mt)
	}
}

func TestBuildMsg_RejectsBadRecipient(t *testing.T) {
	_, err := buildMsg("reports@example.com", Message{To: "not an address", Subject: "s", Text: "t"}, "id@example.com", time.Now())
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []Message{
		{Subject: "s", Text: "t"},
		{To: "a@example.com\r\nBcc: x@example.com", Subject: "s", Text: "t"},
		{To: "a@example.com", Subject: "s\nInjected: y", Text: "t"},
		{To: "a@example.com", Subject: "s"},
	}
	for i, m := range cases {
		if err := validate(m); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("case %d: expected ErrInvalidMessage, got %v", i, err)
		}
	}
}

func TestLogMailer_ReturnsMessageID(t *testing.T) {
	id, err := LogMailer{}.Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "t"})
	if err != nil || id == "" {
		t.Fatalf("expected id, got %q %v", id, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (LogMailer{}).Send(ctx, Message{To: "a@example.com", Subject: "s", Text: "t"}); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
