// Package emotes loads third-party channel emotes (7TV, BTTV, FFZ).
package emotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jdavasligil/emodl"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chatline/chat"
)

// Providers lists the third-party providers in load order.
var Providers = []string{chat.Provider7TV, chat.ProviderBTTV, chat.ProviderFFZ}

// DownloadFunc fetches one provider's emotes keyed by name.
type DownloadFunc func(opts emodl.DownloaderOptions) (map[string]emodl.Emote, error)

func download(opts emodl.DownloaderOptions) (map[string]emodl.Emote, error) {
	dl := emodl.NewDownloader(opts)
	return dl.Load()
}

// Loader fetches provider emotes for a Twitch channel.
type Loader struct {
	Download DownloadFunc
	logger   *slog.Logger
}

// NewLoader returns a Loader backed by emodl.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{Download: download, logger: logger.With(slog.String("component", "emotes"))}
}

func options(provider, channelID string) emodl.DownloaderOptions {
	var o emodl.DownloaderOptions
	switch provider {
	case chat.Provider7TV:
		o.SevenTV = &emodl.SevenTVOptions{Platform: "twitch", PlatformID: channelID}
	case chat.ProviderBTTV:
		o.BTTV = &emodl.BTTVOptions{Platform: "twitch", PlatformID: channelID}
	case chat.ProviderFFZ:
		o.FFZ = &emodl.FFZOptions{Platform: "twitch", PlatformID: channelID}
	}
	return o
}

// convert tags an emodl emote with its provider. The first image is the 1x
// rendition and sets the display size; the last is the largest.
func convert(provider string, e emodl.Emote) (chat.Emote, bool) {
	if len(e.Images) == 0 {
		return chat.Emote{}, false
	}
	first, last := e.Images[0], e.Images[len(e.Images)-1]
	return chat.Emote{
		ID:       e.ID,
		Name:     e.Name,
		Provider: provider,
		URL:      last.URL,
		Width:    first.Width,
		Height:   first.Height,
	}, true
}

// Result holds one channel's emotes per provider. Providers that failed to
// load are absent.
type Result map[string][]chat.Emote

// Channel loads every provider concurrently. A provider failure is logged and
// reported in the joined error; the other providers still load.
func (l *Loader) Channel(ctx context.Context, channelID string) (Result, error) {
	type loaded struct {
		provider string
		emotes   []chat.Emote
		err      error
	}
	results := make([]loaded, len(Providers))

	var g errgroup.Group
	for i, provider := range Providers {
		g.Go(func() error {
			done := make(chan struct{})
			var (
				raw map[string]emodl.Emote
				err error
			)
			go func() {
				defer close(done)
				raw, err = l.Download(options(provider, channelID))
			}()
			select {
			case <-ctx.Done():
				results[i] = loaded{provider: provider, err: ctx.Err()}
				return nil
			case <-done:
			}
			if err != nil {
				results[i] = loaded{provider: provider, err: fmt.Errorf("%s emotes for %s: %w", provider, channelID, err)}
				return nil
			}
			list := lo.FilterMap(lo.Values(raw), func(e emodl.Emote, _ int) (chat.Emote, bool) {
				return convert(provider, e)
			})
			results[i] = loaded{provider: provider, emotes: list}
			return nil
		})
	}
	_ = g.Wait()

	out := make(Result, len(Providers))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			l.logger.Warn("emote provider failed", slog.String("provider", r.provider), slog.String("channel_id", channelID), slog.Any("err", r.err))
			errs = append(errs, r.err)
			continue
		}
		out[r.provider] = r.emotes
	}
	return out, errors.Join(errs...)
}

// Apply replaces each loaded provider's emotes in set.
func (r Result) Apply(set *chat.EmoteSet) {
	for provider, list := range r {
		set.ReplaceProvider(provider, list)
	}
}
