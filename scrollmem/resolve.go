package scrollmem

// ResolveRegion decides which scroll region governs the page. Resolved once
// at startup for the static mount point.
//
// An explicit selector (from config or the mount root's
// data-scroll-container attribute) bypasses auto-detection; if it matches
// nothing, the viewport is used. Otherwise the mount element's ancestors
// are walked upward for the first one whose computed overflow-y is auto or
// scroll, excluding the document's html/body elements. No match means the
// viewport governs.
func ResolveRegion(doc Document, mountSelector, explicitSelector string) Region {
	if explicitSelector != "" {
		if el, ok := doc.Query(explicitSelector); ok {
			return el.Region()
		}
		return doc.Viewport()
	}

	mount, ok := doc.Query(mountSelector)
	if !ok {
		return doc.Viewport()
	}

	el, ok := mount.Parent()
	for ok {
		if el.IsDocumentRoot() {
			break
		}
		if ov, err := el.OverflowY(); err == nil && (ov == "auto" || ov == "scroll") {
			return el.Region()
		}
		el, ok = el.Parent()
	}
	return doc.Viewport()
}
