// Package upstream talks to the LM Studio download server.
//
// Client.Resolve follows the redirect chain of the "latest" entry URL with a
// single HEAD request and returns the versioned download URL. Client.Fetch
// downloads that URL into the workspace unless the file is already there,
// staging the body in a hidden .part file that is renamed into place only
// once the whole body has been written.
package upstream
