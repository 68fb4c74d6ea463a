package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// --- Templated prompts (dynamic data injected at render time) ---

//go:embed prompts/plan-route.txt
var planRouteTemplate string

//go:embed prompts/photo-guide.txt
var photoGuideTemplate string

//go:embed prompts/travel-keyword.txt
var travelKeywordTemplate string

//go:embed prompts/checkin-guided.txt
var checkInGuidedTemplate string

//go:embed prompts/checkin-default.txt
var checkInDefaultTemplate string

var (
	planRouteTmpl      = template.Must(template.New("plan").Parse(planRouteTemplate))
	photoGuideTmpl     = template.Must(template.New("guide").Parse(photoGuideTemplate))
	travelKeywordTmpl  = template.Must(template.New("keyword").Parse(travelKeywordTemplate))
	checkInGuidedTmpl  = template.Must(template.New("checkinGuided").Parse(checkInGuidedTemplate))
	checkInDefaultTmpl = template.Must(template.New("checkinDefault").Parse(checkInDefaultTemplate))
)

// RenderPlanRoutePrompt asks for a 3-6 stop route from origin to city.
func RenderPlanRoutePrompt(origin, city string) string {
	return render(planRouteTmpl, struct{ Origin, City string }{origin, city})
}

// RenderPhotoGuidePrompt asks for an image-generation style guide for a POI.
func RenderPhotoGuidePrompt(poiName string) string {
	return render(photoGuideTmpl, struct{ POIName string }{poiName})
}

// RenderTravelKeywordPrompt asks for a video search keyword for a leg.
func RenderTravelKeywordPrompt(origin, destination string) string {
	return render(travelKeywordTmpl, struct{ Origin, Destination string }{origin, destination})
}

// RenderCheckInPrompt builds the image-generation prompt for a check-in. A
// non-empty guide replaces the default tourist-snapshot description.
func RenderCheckInPrompt(poiName, guide string) string {
	if strings.TrimSpace(guide) != "" {
		return render(checkInGuidedTmpl, struct{ Guide string }{strings.TrimSpace(guide)})
	}
	return render(checkInDefaultTmpl, struct{ POIName string }{poiName})
}

// render executes a pre-parsed template. Execution errors are not expected
// with these templates; whatever was rendered is returned.
func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return strings.TrimSpace(buf.String())
}
