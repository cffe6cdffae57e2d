// Package youtube discovers and classifies the videos of a YouTube channel
package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/client"
	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// ReferenceKind is the recognised shape of a channel reference
type ReferenceKind string

const (
	KindChannelID ReferenceKind = "channel"
	KindHandle    ReferenceKind = "handle"
	KindCustomURL ReferenceKind = "custom"
	KindUsername  ReferenceKind = "user"
)

// customURLCandidates bounds the search used to verify /c/ slugs.
const customURLCandidates = 5

// Reference is a parsed channel reference
type Reference struct {
	Kind  ReferenceKind
	Value string
}

func (r Reference) cacheKey() string {
	if r.Kind == KindChannelID {
		return string(r.Kind) + ":" + r.Value
	}
	return string(r.Kind) + ":" + strings.ToLower(r.Value)
}

// URL returns the canonical channel page for the reference.
func (r Reference) URL() string {
	switch r.Kind {
	case KindChannelID:
		return common.ChannelURL(r.Value)
	case KindCustomURL:
		return common.CustomChannelURL(r.Value)
	case KindUsername:
		return common.UserURL(r.Value)
	default:
		return common.HandleURL(r.Value)
	}
}

// ParseReference recognises channel id, @handle, /c/ custom and /user/ URLs on
// youtube.com, www.youtube.com and m.youtube.com. The scheme is optional and a
// bare "@handle" is accepted.
func ParseReference(reference string) (Reference, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return Reference{}, fmt.Errorf("empty reference: %w", model.ErrUnsupportedReference)
	}
	if strings.HasPrefix(ref, "@") {
		handle := strings.TrimPrefix(ref, "@")
		if i := strings.IndexAny(handle, "/?#"); i >= 0 {
			handle = handle[:i]
		}
		if handle == "" {
			return Reference{}, fmt.Errorf("%q: %w", reference, model.ErrUnsupportedReference)
		}
		return Reference{Kind: KindHandle, Value: handle}, nil
	}

	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Reference{}, fmt.Errorf("%q: %w", reference, model.ErrUnsupportedReference)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Reference{}, fmt.Errorf("%q: unsupported scheme: %w", reference, model.ErrUnsupportedReference)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" {
		return Reference{}, fmt.Errorf("%q: not a youtube.com URL: %w", reference, model.ErrUnsupportedReference)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return Reference{}, fmt.Errorf("%q: %w", reference, model.ErrUnsupportedReference)
	}

	first := segments[0]
	switch {
	case first == "channel" && len(segments) >= 2:
		return Reference{Kind: KindChannelID, Value: segments[1]}, nil
	case strings.HasPrefix(first, "@") && len(first) > 1:
		return Reference{Kind: KindHandle, Value: first[1:]}, nil
	case first == "c" && len(segments) >= 2:
		return Reference{Kind: KindCustomURL, Value: segments[1]}, nil
	case first == "user" && len(segments) >= 2:
		return Reference{Kind: KindUsername, Value: segments[1]}, nil
	}
	return Reference{}, fmt.Errorf("%q: %w", reference, model.ErrUnsupportedReference)
}

// Resolver maps channel references to channel identities using exact-match
// lookups only. Successful resolutions are cached.
type Resolver struct {
	lookup client.ChannelLookup
	cache  *lru.Cache[string, model.ChannelIdentity]
}

// NewResolver creates a resolver. lookup may be nil, in which case only
// channel id references resolve.
func NewResolver(lookup client.ChannelLookup, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, model.ChannelIdentity](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	return &Resolver{lookup: lookup, cache: cache}, nil
}

// Resolve returns the identity for reference. It fails with
// model.ErrUnsupportedReference for unrecognised shapes, model.ErrNotFound when
// no exact match exists and model.ErrProviderUnavailable when the lookup API
// cannot be reached.
func (r *Resolver) Resolve(ctx context.Context, reference string) (model.ChannelIdentity, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return model.ChannelIdentity{}, err
	}

	if ref.Kind == KindChannelID {
		return model.ChannelIdentity{ID: ref.Value}, nil
	}

	key := ref.cacheKey()
	if identity, ok := r.cache.Get(key); ok {
		log.Debug().Str("reference", reference).Str("channel_id", identity.ID).Msg("Resolved channel from cache")
		return identity, nil
	}

	if r.lookup == nil {
		return model.ChannelIdentity{}, fmt.Errorf("resolve %s %q: no channel lookup configured: %w", ref.Kind, ref.Value, model.ErrProviderUnavailable)
	}

	identity, err := r.resolveRemote(ctx, ref)
	if err != nil {
		return model.ChannelIdentity{}, fmt.Errorf("resolve %s %q: %w", ref.Kind, ref.Value, err)
	}

	r.cache.Add(key, identity)
	log.Info().
		Str("reference", reference).
		Str("kind", string(ref.Kind)).
		Str("channel_id", identity.ID).
		Str("title", identity.DisplayName).
		Msg("Resolved channel reference")
	return identity, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, ref Reference) (model.ChannelIdentity, error) {
	switch ref.Kind {
	case KindHandle:
		ch, err := r.lookup.ChannelByHandle(ctx, ref.Value)
		if err != nil {
			return model.ChannelIdentity{}, err
		}
		return model.ChannelIdentity{ID: ch.ID, DisplayName: ch.Title}, nil

	case KindUsername:
		ch, err := r.lookup.ChannelByUsername(ctx, ref.Value)
		if err != nil {
			return model.ChannelIdentity{}, err
		}
		return model.ChannelIdentity{ID: ch.ID, DisplayName: ch.Title}, nil

	case KindCustomURL:
		ids, err := r.lookup.SearchChannels(ctx, ref.Value, customURLCandidates)
		if err != nil {
			return model.ChannelIdentity{}, err
		}
		candidates, err := r.lookup.ChannelsByID(ctx, ids...)
		if err != nil {
			return model.ChannelIdentity{}, err
		}
		want := normalizeCustomURL(ref.Value)
		for _, ch := range candidates {
			if normalizeCustomURL(ch.CustomURL) == want {
				return model.ChannelIdentity{ID: ch.ID, DisplayName: ch.Title}, nil
			}
		}
		log.Debug().Str("slug", ref.Value).Int("candidates", len(candidates)).Msg("No candidate declares the requested custom URL")
		return model.ChannelIdentity{}, model.ErrNotFound
	}
	return model.ChannelIdentity{}, model.ErrUnsupportedReference
}

func normalizeCustomURL(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
