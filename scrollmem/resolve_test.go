package scrollmem

import "testing"

func TestResolveRegion_ExplicitSelectorOverride(t *testing.T) {
	doc := newFakeDoc()
	target := &fakeElement{region: &fakeRegion{}}
	doc.bySel["#feed"] = target

	region := ResolveRegion(doc, "#app", "#feed")
	if region != target.region {
		t.Fatal("ResolveRegion: explicit selector did not win")
	}

	// All reads and writes must target the element, never the viewport.
	region.ScrollTo(Offset{X: 0, Y: 50})
	if len(target.region.scrolls) != 1 {
		t.Fatalf("ResolveRegion: element region got %d scrolls, want 1", len(target.region.scrolls))
	}
	if len(doc.viewport.scrolls) != 0 {
		t.Fatal("ResolveRegion: viewport was scrolled despite explicit container")
	}
}

func TestResolveRegion_ExplicitSelectorMissing(t *testing.T) {
	doc := newFakeDoc()
	if got := ResolveRegion(doc, "#app", "#nope"); got != doc.viewport {
		t.Fatal("ResolveRegion: missing explicit selector should fall back to viewport")
	}
}

func TestResolveRegion_FindsOverflowAncestor(t *testing.T) {
	doc := newFakeDoc()
	html := &fakeElement{root: true}
	body := &fakeElement{root: true, parent: html}
	pane := &fakeElement{overflowY: "auto", region: &fakeRegion{}, parent: body}
	wrapper := &fakeElement{overflowY: "visible", parent: pane}
	mount := &fakeElement{parent: wrapper}
	doc.bySel["#app"] = mount

	if got := ResolveRegion(doc, "#app", ""); got != pane.region {
		t.Fatal("ResolveRegion: did not find the first overflow auto ancestor")
	}
}

func TestResolveRegion_ScrollOverflowCounts(t *testing.T) {
	doc := newFakeDoc()
	pane := &fakeElement{overflowY: "scroll", region: &fakeRegion{}}
	mount := &fakeElement{parent: pane}
	doc.bySel["#app"] = mount

	if got := ResolveRegion(doc, "#app", ""); got != pane.region {
		t.Fatal("ResolveRegion: overflow-y scroll should count as a container")
	}
}

func TestResolveRegion_RootElementsExcluded(t *testing.T) {
	doc := newFakeDoc()
	// body with overflow auto must still not become the region.
	html := &fakeElement{root: true, overflowY: "auto", region: &fakeRegion{}}
	body := &fakeElement{root: true, overflowY: "auto", region: &fakeRegion{}, parent: html}
	mount := &fakeElement{parent: body}
	doc.bySel["#app"] = mount

	if got := ResolveRegion(doc, "#app", ""); got != doc.viewport {
		t.Fatal("ResolveRegion: html/body must not be treated as scroll containers")
	}
}

func TestResolveRegion_NoMountFallsBackToViewport(t *testing.T) {
	doc := newFakeDoc()
	if got := ResolveRegion(doc, "#app", ""); got != doc.viewport {
		t.Fatal("ResolveRegion: absent mount should fall back to viewport")
	}
}
