package artifact

import "errors"

// ErrNoArtifact means nothing has been published under the model name yet.
var ErrNoArtifact = errors.New("no published artifact")
