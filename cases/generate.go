package cases

import "fmt"

var (
	styles = []string{
		"cinematic", "watercolor", "pixel art", "oil painting", "photorealistic", "anime",
		"low-poly 3D", "isometric", "ink sketch", "paper cutout", "retro poster", "noir",
	}
	subjects = []string{
		"robot detective", "astronaut cat", "floating island village", "ancient library",
		"clockwork dragon", "neon samurai", "mystic fox", "desert caravan", "subway magician",
		"underwater city", "sky pirate", "forest shrine", "space diner", "cyber monk",
		"moon base engineer", "haunted lighthouse", "snowy mountain temple", "street food stall",
		"giant mecha gardener", "time-traveling courier",
	}
	settings = []string{
		"rainy neon city", "sunset coastline", "misty forest", "busy night market",
		"abandoned space station", "victorian alley", "floating sky islands", "deep ocean trench",
		"ancient ruins", "desert canyon", "arctic research outpost", "volcanic crater",
	}
	lighting = []string{
		"moody lighting", "soft golden hour", "dramatic rim light", "holographic glow",
		"stormy atmosphere", "warm lantern light", "cold blue moonlight", "high-contrast shadows",
	}
	extras = []string{
		"ultra-detailed", "highly stylized", "shallow depth of field", "wide angle",
		"close-up portrait", "dynamic composition", "clean lines", "film grain", "bokeh",
		"vibrant palette", "muted palette", "minimalist background",
	}
)

func pick(list []string, i int) string {
	return list[i%len(list)]
}

// Generate builds n deterministic cases, case_001 to case_n
func Generate(n int) []Case {
	list := make([]Case, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		list = append(list, Case{
			ID:       fmt.Sprintf("case_%03d", i),
			ImageURL: fmt.Sprintf("https://picsum.photos/seed/promptheist_%03d/1200/700", i),
			SecretPrompt: fmt.Sprintf("%s scene of a %s in a %s, %s, %s, %s",
				pick(styles, i), pick(subjects, i*2), pick(settings, i*3),
				pick(lighting, i*5), pick(extras, i*7), pick(extras, i*11)),
		})
	}
	return list
}
