package s3util

import (
	"net/url"
)

// projectName is the value of the Project cost-allocation tag.
const projectName = "tripstory"

// ProjectTagging returns the URL-encoded object tagging string for
// PutObjectInput.Tagging. kind further tags the object ("checkin", ...).
func ProjectTagging(kind string) *string {
	v := url.Values{"Project": {projectName}}
	if kind != "" {
		v.Set("Kind", kind)
	}
	t := v.Encode()
	return &t
}
