package model

import "strings"

type Sphere string

const (
	SpherePhysical     Sphere = "physical"
	SphereEmotional    Sphere = "emotional"
	SphereSocial       Sphere = "social"
	SphereIntellectual Sphere = "intellectual"
	SphereCreative     Sphere = "creative"
	SphereProfessional Sphere = "professional"
	SphereSpiritual    Sphere = "spiritual"
)

// DefaultSphere is applied when neither keywords nor the AI produce a match.
const DefaultSphere = SphereProfessional

// Spheres lists every sphere in catalog order. Keyword classification walks
// this order and the first match wins.
var Spheres = []Sphere{
	SpherePhysical,
	SphereEmotional,
	SphereSocial,
	SphereIntellectual,
	SphereCreative,
	SphereProfessional,
	SphereSpiritual,
}

type SphereInfo struct {
	ID      Sphere   `json:"id"`
	Name    string   `json:"name"`
	Icon    string   `json:"icon"`
	Element string   `json:"element"`
	Colors  []string `json:"colors"`
}

var sphereCatalog = map[Sphere]SphereInfo{
	SpherePhysical:     {ID: SpherePhysical, Name: "Physical", Icon: "🌱", Element: "Earth", Colors: []string{"#2d5016", "#3d6b1f", "#4d7c2a", "#5d8d35"}},
	SphereEmotional:    {ID: SphereEmotional, Name: "Emotional", Icon: "💧", Element: "Water", Colors: []string{"#1e40af", "#2563eb", "#3b82f6", "#60a5fa"}},
	SphereSocial:       {ID: SphereSocial, Name: "Social", Icon: "🔥", Element: "Fire", Colors: []string{"#ea580c", "#f97316", "#fb923c", "#fdba74"}},
	SphereIntellectual: {ID: SphereIntellectual, Name: "Intellectual", Icon: "🌬️", Element: "Air", Colors: []string{"#0284c7", "#0ea5e9", "#38bdf8", "#7dd3fc"}},
	SphereCreative:     {ID: SphereCreative, Name: "Creative", Icon: "🌸", Element: "Flora", Colors: []string{"#9333ea", "#a855f7", "#c084fc", "#d8b4fe"}},
	SphereProfessional: {ID: SphereProfessional, Name: "Professional", Icon: "⛰️", Element: "Stone", Colors: []string{"#475569", "#64748b", "#94a3b8", "#cbd5e1"}},
	SphereSpiritual:    {ID: SphereSpiritual, Name: "Spiritual", Icon: "✨", Element: "Ether", Colors: []string{"#d97706", "#f59e0b", "#fbbf24", "#fcd34d"}},
}

// ParseSphere validates raw against the closed sphere set.
func ParseSphere(raw string) (Sphere, bool) {
	s := Sphere(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := sphereCatalog[s]; !ok {
		return "", false
	}
	return s, true
}

func (s Sphere) Valid() bool {
	_, ok := sphereCatalog[s]
	return ok
}

// Info returns display metadata. Unknown spheres yield the zero value.
func (s Sphere) Info() SphereInfo {
	return sphereCatalog[s]
}

func (s Sphere) String() string {
	return string(s)
}

// Catalog returns the display metadata of every sphere in catalog order.
func Catalog() []SphereInfo {
	out := make([]SphereInfo, 0, len(Spheres))
	for _, s := range Spheres {
		info := sphereCatalog[s]
		info.Colors = append([]string(nil), info.Colors...)
		out = append(out, info)
	}
	return out
}
