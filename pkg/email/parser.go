package email

import (
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"regexp"
	"strings"
	"time"
)

// Email represents a parsed email reduced to the text the classifier reads
type Email struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Headers     map[string]string
	Attachments []Attachment
	ParsedAt    time.Time
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// Text returns the subject and body as one document.
func (e *Email) Text() string {
	switch {
	case e.Subject == "":
		return e.Body
	case e.Body == "":
		return e.Subject
	default:
		return e.Subject + "\n" + e.Body
	}
}

// Parser handles fast email parsing
type Parser struct {
	wordDecoder *mime.WordDecoder
}

// NewParser creates a new email parser
func NewParser() *Parser {
	return &Parser{wordDecoder: new(mime.WordDecoder)}
}

// ParseFromFile parses an email from a file
func (p *Parser) ParseFromFile(filepath string) (*Email, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse parses an email from a reader
func (p *Parser) Parse(reader io.Reader) (*Email, error) {
	msg, err := mail.ReadMessage(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %v", err)
	}

	email := &Email{
		Headers:  make(map[string]string),
		ParsedAt: time.Now(),
	}

	email.From = msg.Header.Get("From")
	email.Subject = p.DecodeHeader(msg.Header.Get("Subject"))

	if to := msg.Header.Get("To"); to != "" {
		email.To = strings.Split(to, ",")
		for i := range email.To {
			email.To[i] = strings.TrimSpace(email.To[i])
		}
	}

	for key, values := range msg.Header {
		email.Headers[key] = strings.Join(values, "; ")
	}

	err = p.parseBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, email)
	if err != nil {
		return nil, fmt.Errorf("failed to parse body: %v", err)
	}

	email.Body = strings.TrimSpace(email.Body)
	return email, nil
}

// DecodeHeader decodes RFC 2047 encoded words, returning the raw value when
// decoding fails.
func (p *Parser) DecodeHeader(value string) string {
	decoded, err := p.wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func (p *Parser) parseBody(contentType, transferEncoding string, body io.Reader, email *Email) error {
	if contentType == "" {
		return p.appendText(email, "text/plain", transferEncoding, body)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Fallback to reading as plain text
		return p.appendText(email, "text/plain", transferEncoding, body)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return p.parseMultipart(body, params["boundary"], email)
	}
	if strings.HasPrefix(mediaType, "text/") {
		return p.appendText(email, mediaType, transferEncoding, body)
	}
	return nil
}

// parseMultipart walks every part, recursing into nested multiparts
func (p *Parser) parseMultipart(body io.Reader, boundary string, email *Email) error {
	if boundary == "" {
		return fmt.Errorf("multipart message without boundary")
	}

	multipartReader := multipart.NewReader(body, boundary)

	for {
		part, err := multipartReader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		contentType := part.Header.Get("Content-Type")
		contentDisposition := part.Header.Get("Content-Disposition")

		if strings.Contains(contentDisposition, "attachment") {
			attachment := Attachment{
				Filename:    part.FileName(),
				ContentType: contentType,
			}
			if n, err := io.Copy(io.Discard, part); err == nil {
				attachment.Size = n
			}
			email.Attachments = append(email.Attachments, attachment)
		} else if err := p.parseBody(contentType, part.Header.Get("Content-Transfer-Encoding"), part, email); err != nil {
			part.Close()
			return err
		}

		part.Close()
	}

	return nil
}

func (p *Parser) appendText(email *Email, mediaType, transferEncoding string, body io.Reader) error {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: body})
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	text := string(content)
	if mediaType == "text/html" {
		text = StripHTML(text)
	}

	if email.Body == "" {
		email.Body = text
	} else {
		email.Body += "\n" + text
	}
	return nil
}

var (
	htmlDropRegex = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRegex  = regexp.MustCompile(`(?s)<[^>]*>`)
)

// StripHTML removes markup and unescapes entities.
func StripHTML(s string) string {
	s = htmlDropRegex.ReplaceAllString(s, " ")
	s = htmlTagRegex.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

// newlineStripper drops CR and LF so line-wrapped base64 decodes cleanly.
type newlineStripper struct {
	r io.Reader
}

func (n *newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		k := 0
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				p[k] = b
				k++
			}
		}
		if k > 0 || err != nil {
			return k, err
		}
	}
}
