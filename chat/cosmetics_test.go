package chat

import "testing"

func TestPaint_Background(t *testing.T) {
	red := int32(-16776961) // 0xFF0000FF
	tests := []struct {
		name  string
		paint Paint
		want  string
	}{
		{"solid", Paint{Color: &red}, "rgba(255, 0, 0, 1)"},
		{"linear", Paint{Function: "LINEAR_GRADIENT", Angle: 90, Stops: []PaintStop{{0, red}, {1, 0x0000FFFF}}},
			"linear-gradient(90deg, rgba(255, 0, 0, 1) 0%, rgba(0, 0, 255, 1) 100%)"},
		{"repeating radial", Paint{Function: "RADIAL_GRADIENT", Repeat: true, Stops: []PaintStop{{0.5, red}}},
			"repeating-radial-gradient(circle, rgba(255, 0, 0, 1) 50%)"},
		{"url", Paint{Function: "URL", ImageURL: "https://cdn/x.webp"}, `url("https://cdn/x.webp")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.paint.Background(); got != tt.want {
				t.Errorf("Background() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCosmetics_Entitlements(t *testing.T) {
	c := NewCosmetics()
	c.AddBadge(SevenTVBadge{ID: "b1", Name: "Founder"})
	c.Entitle("u1", CosmeticBadge, "b1")

	if b, ok := c.BadgeFor("u1"); !ok || b.Name != "Founder" {
		t.Fatalf("BadgeFor() = %+v, %v", b, ok)
	}
	c.Revoke("u1", CosmeticBadge, "other")
	if _, ok := c.BadgeFor("u1"); !ok {
		t.Fatal("revoking a different badge must keep the current one")
	}
	c.Revoke("u1", CosmeticBadge, "b1")
	if _, ok := c.BadgeFor("u1"); ok {
		t.Fatal("badge should be revoked")
	}
}
