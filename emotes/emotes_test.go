package emotes

import (
	"context"
	"errors"
	"testing"

	"github.com/jdavasligil/emodl"

	"github.com/onnwee/chatline/chat"
)

func fakeDownload(t *testing.T, fail string) DownloadFunc {
	t.Helper()
	return func(opts emodl.DownloaderOptions) (map[string]emodl.Emote, error) {
		switch {
		case opts.SevenTV != nil:
			if opts.SevenTV.PlatformID != "100" {
				t.Errorf("7tv platform id = %q", opts.SevenTV.PlatformID)
			}
			if fail == chat.Provider7TV {
				return nil, errors.New("boom")
			}
			return map[string]emodl.Emote{
				"Wave": {ID: "s1", Name: "Wave", Images: []emodl.Image{
					{URL: "https://cdn.7tv.app/emote/s1/1x.webp", Width: 28, Height: 28},
					{URL: "https://cdn.7tv.app/emote/s1/4x.webp", Width: 112, Height: 112},
				}},
			}, nil
		case opts.BTTV != nil:
			return map[string]emodl.Emote{
				"catJAM":  {ID: "b1", Name: "catJAM", Images: []emodl.Image{{URL: "https://cdn.bttv/b1", Width: 32, Height: 28}}},
				"noImage": {ID: "b2", Name: "noImage"},
			}, nil
		case opts.FFZ != nil:
			return map[string]emodl.Emote{}, nil
		}
		t.Fatal("download called without a provider")
		return nil, nil
	}
}

func TestLoaderChannel(t *testing.T) {
	l := NewLoader(nil)
	l.Download = fakeDownload(t, "")

	res, err := l.Channel(context.Background(), "100")
	if err != nil {
		t.Fatalf("Channel() error = %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("providers = %d, want 3", len(res))
	}
	seven := res[chat.Provider7TV]
	if len(seven) != 1 || seven[0].Provider != chat.Provider7TV || seven[0].Width != 28 || seven[0].URL != "https://cdn.7tv.app/emote/s1/4x.webp" {
		t.Errorf("7tv = %+v", seven)
	}
	if bttv := res[chat.ProviderBTTV]; len(bttv) != 1 || bttv[0].Name != "catJAM" {
		t.Errorf("bttv = %+v (emotes without images are skipped)", bttv)
	}
}

func TestLoaderPartialFailure(t *testing.T) {
	l := NewLoader(nil)
	l.Download = fakeDownload(t, chat.Provider7TV)

	set := chat.NewEmoteSet("", "", "100")
	set.Put(chat.Emote{ID: "old", Name: "Stale7TV", Provider: chat.Provider7TV})

	res, err := l.Channel(context.Background(), "100")
	if err == nil {
		t.Fatal("Channel() expected error for failed provider")
	}
	if _, ok := res[chat.Provider7TV]; ok {
		t.Error("failed provider present in result")
	}
	res.Apply(set)
	if _, ok := set.Emote("Stale7TV"); !ok {
		t.Error("failed provider's existing emotes were cleared")
	}
	if _, ok := set.Emote("catJAM"); !ok {
		t.Error("loaded provider not applied")
	}
}

func TestNewLoaderUsesEmodl(t *testing.T) {
	if NewLoader(nil).Download == nil {
		t.Fatal("default loader has no download func")
	}
	tests := []struct {
		provider string
		check    func(o emodl.DownloaderOptions) bool
	}{
		{chat.Provider7TV, func(o emodl.DownloaderOptions) bool {
			return o.SevenTV != nil && o.SevenTV.PlatformID == "100" && o.BTTV == nil && o.FFZ == nil
		}},
		{chat.ProviderBTTV, func(o emodl.DownloaderOptions) bool {
			return o.BTTV != nil && o.BTTV.PlatformID == "100" && o.SevenTV == nil && o.FFZ == nil
		}},
		{chat.ProviderFFZ, func(o emodl.DownloaderOptions) bool {
			return o.FFZ != nil && o.FFZ.Platform == "twitch" && o.SevenTV == nil && o.BTTV == nil
		}},
	}
	for _, tt := range tests {
		if o := options(tt.provider, "100"); !tt.check(o) {
			t.Errorf("options(%s) = %+v", tt.provider, o)
		}
	}
}
