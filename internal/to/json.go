// package to contains functions for writing responses.
package to

import (
	"net/http"

	"github.com/go-json-experiment/json"
)

const (
	// ActivityType is the content type of ActivityPub documents.
	ActivityType = "application/activity+json; charset=utf-8"

	// JRDType is the content type of Webfinger documents.
	JRDType = "application/jrd+json; charset=utf-8"
)

// JSON writes the given object to the response body as JSON.
// If obj is a nil slice, an empty JSON array is written.
// If obj is a nil map, an empty JSON object is written.
// If obj is a nil pointer, a null is written.
func JSON(w http.ResponseWriter, obj any) error {
	return write(w, "application/json; charset=utf-8", obj)
}

// Activity writes obj as an ActivityPub document readable from any origin.
func Activity(w http.ResponseWriter, obj any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	return write(w, ActivityType, obj)
}

// JRD writes obj as a Webfinger JRD document.
func JRD(w http.ResponseWriter, obj any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "max-age=3600")
	return write(w, JRDType, obj)
}

func write(w http.ResponseWriter, contentType string, obj any) error {
	w.Header().Set("Content-Type", contentType)
	return json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "  ",
	}, w, obj)
}
