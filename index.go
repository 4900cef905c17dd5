// Copyright The JmxTrans Authors
// SPDX-License-Identifier: MIT

package elasticwriter // import "github.com/yxydde/jmxtrans"

import "time"

// resolveIndex derives the destination index name from the configured root
// prefix and the moment the document is appended to the bulk buffer. The
// sample's own collection timestamp does not participate.
func resolveIndex(rootPrefix string, t time.Time) string {
	return rootPrefix + t.Format("2006-01-02")
}
