package jules

import "strings"

const taskPathSegment = "/task/"

// ResolveTaskID accepts either a raw task id or a full task URL. A URL
// containing "/task/" has the following path segment extracted; anything
// else is used as-is.
func ResolveTaskID(idOrURL string) string {
	i := strings.Index(idOrURL, taskPathSegment)
	if i < 0 {
		return idOrURL
	}
	id := idOrURL[i+len(taskPathSegment):]
	if j := strings.IndexAny(id, "/?#"); j >= 0 {
		id = id[:j]
	}
	if id == "" {
		return idOrURL
	}
	return id
}

// TaskURL builds the canonical task page URL.
func TaskURL(baseURL, id string) string {
	return strings.TrimSuffix(baseURL, "/") + taskPathSegment + id
}
