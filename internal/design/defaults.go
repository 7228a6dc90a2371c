package design

// Curated defaults used when neither the model nor the references supply a value.
var (
	defaultPalette = map[string]string{
		"background": "#0b0f19",
		"surface":    "#111827",
		"text":       "#e5e7eb",
		"muted":      "#9ca3af",
		"primary":    "#6366f1",
		"secondary":  "#22d3ee",
		"accent":     "#f59e0b",
	}

	// paletteOrder is the order reference colors are assigned in.
	paletteOrder = []string{"primary", "background", "text", "accent", "secondary", "surface", "muted"}

	defaultFontStack   = `system-ui, -apple-system, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif`
	defaultSpacing     = []string{"4px", "8px", "12px", "16px", "24px", "32px", "48px", "64px"}
	defaultBreakpoints = []string{"640px", "768px", "1024px", "1280px"}
	defaultSections    = []string{"header", "hero", "features", "call-to-action", "footer"}
	defaultComponents  = []Component{
		{Name: "Navbar", Role: "site navigation with a collapsible mobile menu", States: []string{"open", "closed"}},
		{Name: "Hero", Role: "headline, supporting copy and a primary call to action"},
		{Name: "FeatureGrid", Role: "responsive grid of feature cards"},
		{Name: "Footer", Role: "secondary links and copyright"},
	}
)

const (
	defaultTheme  = "dark"
	defaultRadius = "12px"
	defaultScale  = "1.25"
)
