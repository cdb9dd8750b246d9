package badges

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// queryAllJS defines all(root, expr), which understands the xpath= prefix
// used by selector candidates.
const queryAllJS = `const all = (root, expr) => {
  if (expr.startsWith("xpath=")) {
    const snap = document.evaluate(expr.slice(6), root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    const out = [];
    for (let i = 0; i < snap.snapshotLength; i++) out.push(snap.snapshotItem(i));
    return out;
  }
  return Array.from(root.querySelectorAll(expr));
};
const first = (root, exprs) => {
  for (const e of exprs) {
    const found = all(root, e);
    if (found.length > 0) return found;
  }
  return [];
};`

// sampleTextsScript evaluates to the trimmed text of up to limit elements
// matched by the first badge candidate with matches.
func sampleTextsScript(badge []string, limit int) (string, error) {
	exprs, err := json.MarshalToString(badge)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
%s
return first(document, %s).slice(0, %d).map(el => (el.textContent || "").trim());
})()`, queryAllJS, exprs, limit), nil
}

// sectionBadgeCountsScript evaluates to the number of badges inside each of
// the first limit sections.
func sectionBadgeCountsScript(section, badge []string, limit int) (string, error) {
	sections, err := json.MarshalToString(section)
	if err != nil {
		return "", err
	}
	badges, err := json.MarshalToString(badge)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
%s
return first(document, %s).slice(0, %d).map(s => first(s, %s).length);
})()`, queryAllJS, sections, limit, badges), nil
}
