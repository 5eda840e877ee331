package content

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/textutil"
)

// Submission limits
const (
	TitleMaxUnits    = 40
	BodyMaxLength    = 2000
	CommentMaxLength = 2000
	MaxTags          = 10
	CoverMaxBytes    = 5 << 20
	GIFMaxBytes      = 8 << 20
)

// PostInput is the author-supplied part of a post
type PostInput struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
	// Cover is an image data URL. Empty means no cover, or on update keep the
	// current one.
	Cover string `json:"cover"`
	// RemoveCover clears the cover on update
	RemoveCover bool `json:"removeCover"`
}

// Normalize trims fields and drops empty tags beyond the first MaxTags
func (in *PostInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Tags = NormalizeTags(in.Tags)
	in.Cover = strings.TrimSpace(in.Cover)
}

// Validate checks a normalized post and canonicalizes its cover
func (in *PostInput) Validate() error {
	if in.Title == "" || in.Body == "" {
		return apperr.Validation("title_or_body_missing")
	}
	if textutil.TitleUnits(in.Title) > TitleMaxUnits {
		return apperr.Validation("title_too_long")
	}
	if textutil.Graphemes(in.Body) > BodyMaxLength {
		return apperr.Validation("body_too_long")
	}
	if in.RemoveCover && in.Cover != "" {
		return apperr.Validation("cover_conflict")
	}
	if in.Cover != "" {
		cover, err := ValidateCover(in.Cover)
		if err != nil {
			return err
		}
		in.Cover = cover
	}
	return nil
}

// NormalizeTags trims tags, drops empty ones and keeps at most MaxTags
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// ValidateCover decodes a base64 data URL, sniffs its content and returns the
// data URL re-labelled with the detected image type.
func ValidateCover(dataURL string) (string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", apperr.Validation("cover_invalid")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", apperr.Validation("cover_invalid")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", apperr.Validation("cover_invalid")
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", apperr.Validation("cover_invalid").WithMessage(mtype.String())
	}

	limit, kind := CoverMaxBytes, "image"
	if mtype.Is("image/gif") {
		limit, kind = GIFMaxBytes, "gif"
	}
	if len(data) > limit {
		return "", apperr.Validation("cover_too_large").WithMessage(kind)
	}

	return "data:" + mtype.String() + ";base64," + payload, nil
}

// ValidateComment trims and checks a comment body
func ValidateComment(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperr.Validation("body_missing")
	}
	if textutil.Graphemes(body) > CommentMaxLength {
		return "", apperr.Validation("body_too_long")
	}
	return body, nil
}
