// File: internal/usecase/reference.go
package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

const (
	randomSuffixLen = 6
	userSuffixLen   = 6
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var kindCodes = map[model.ProductKind]string{
	model.ProductCourse:     "CUR",
	model.ProductTutorial:   "TUT",
	model.ProductMembership: "MEM",
}

// ReferenceGenerator builds payment references of the form
// KIND-entityId-<millis base36>-<6 random base36>-<last 6 of userId>.
// It never checks storage; the unique constraint on payment_records does.
type ReferenceGenerator struct {
	now  func() time.Time
	rand io.Reader
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now, rand: rand.Reader}
}

// NewReferenceGeneratorWith is used by tests to pin the clock and entropy.
func NewReferenceGeneratorWith(now func() time.Time, r io.Reader) *ReferenceGenerator {
	return &ReferenceGenerator{now: now, rand: r}
}

func (g *ReferenceGenerator) Generate(kind model.ProductKind, entityID, userID string) (string, error) {
	code, ok := kindCodes[kind]
	user := userSuffix(userID)
	if !ok || entityID == "" || user == "" {
		return "", domain.ErrInvalidArgument
	}
	suffix, err := g.randomSuffix()
	if err != nil {
		return "", fmt.Errorf("reference entropy: %w", err)
	}
	ts := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	return strings.Join([]string{code, entityID, ts, suffix, user}, "-"), nil
}

func (g *ReferenceGenerator) randomSuffix() (string, error) {
	buf := make([]byte, randomSuffixLen)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}
	out := make([]byte, randomSuffixLen)
	for i, b := range buf {
		out[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return string(out), nil
}

func userSuffix(userID string) string {
	clean := strings.ReplaceAll(userID, "-", "")
	if len(clean) > userSuffixLen {
		return clean[len(clean)-userSuffixLen:]
	}
	return clean
}

// ReferenceParts is the decoded form of a reference.
type ReferenceParts struct {
	Kind       model.ProductKind
	EntityID   string
	IssuedAt   time.Time
	Random     string
	UserSuffix string
}

// ParseReference decodes a reference produced by Generate. Entity ids may
// contain dashes, so the fixed segments are taken from the right.
func ParseReference(ref string) (*ReferenceParts, error) {
	parts := strings.Split(ref, "-")
	if len(parts) < 5 {
		return nil, fmt.Errorf("reference %q: %w", ref, domain.ErrInvalidArgument)
	}
	n := len(parts)
	var kind model.ProductKind
	for k, code := range kindCodes {
		if code == parts[0] {
			kind = k
		}
	}
	if kind == "" {
		return nil, fmt.Errorf("reference %q: unknown kind: %w", ref, domain.ErrInvalidArgument)
	}
	millis, err := strconv.ParseInt(strings.ToLower(parts[n-3]), 36, 64)
	if err != nil {
		return nil, fmt.Errorf("reference %q: timestamp: %w", ref, domain.ErrInvalidArgument)
	}
	if len(parts[n-2]) != randomSuffixLen {
		return nil, fmt.Errorf("reference %q: random suffix: %w", ref, domain.ErrInvalidArgument)
	}
	if parts[n-1] == "" {
		return nil, fmt.Errorf("reference %q: user suffix: %w", ref, domain.ErrInvalidArgument)
	}
	return &ReferenceParts{
		Kind:       kind,
		EntityID:   strings.Join(parts[1:n-3], "-"),
		IssuedAt:   time.UnixMilli(millis),
		Random:     parts[n-2],
		UserSuffix: parts[n-1],
	}, nil
}

// KindOf returns the product kind encoded in ref, or "" if ref is not ours.
func KindOf(ref string) model.ProductKind {
	p, err := ParseReference(ref)
	if err != nil {
		return ""
	}
	return p.Kind
}
