// Package catalog contains the static catalogs of the known filter lists: the
// default ones and the regional ones.  The catalogs are pure data that the
// update layer uses to know what to fetch and how to label it.
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// FilterList is a catalog entry describing a filter list.
type FilterList struct {
	// Title is the human-readable name of the list.
	Title string `json:"title" yaml:"title"`

	// URL is the location the list is downloaded from.
	URL string `json:"url" yaml:"url"`

	// SupportURL is the location of the list's issue tracker or forum.
	SupportURL string `json:"support_url" yaml:"support_url"`

	// ComponentID is the identifier of the component that delivers the list
	// to the browser, if any.
	ComponentID string `json:"component_id,omitempty" yaml:"component_id,omitempty"`

	// Base64PublicKey is the publisher key of the component, if any.
	Base64PublicKey string `json:"base64_public_key,omitempty" yaml:"base64_public_key,omitempty"`

	// Desc is the description of the list.
	Desc string `json:"desc" yaml:"desc"`

	// Langs are the ISO 639-1 codes of the languages the list targets.  It is
	// empty for the lists that are not regional.
	Langs []string `json:"langs,omitempty" yaml:"langs,omitempty"`

	// UUID is the unique identifier of the list.
	UUID uuid.UUID `json:"uuid" yaml:"uuid"`
}

// clone returns a deep copy of l.
func (l FilterList) clone() (c FilterList) {
	c = l
	c.Langs = slices.Clone(l.Langs)

	return c
}

// cloneLists returns a deep copy of lists.
func cloneLists(lists []FilterList) (c []FilterList) {
	c = make([]FilterList, 0, len(lists))
	for _, l := range lists {
		c = append(c, l.clone())
	}

	return c
}

// DefaultLists returns the catalog of the lists enabled by default.  The
// result is a copy that the caller may modify.
func DefaultLists() (lists []FilterList) {
	return cloneLists(defaultLists())
}

// RegionalLists returns the catalog of the language-specific lists.  The
// result is a copy that the caller may modify.
func RegionalLists() (lists []FilterList) {
	return cloneLists(regionalLists())
}

// Find returns the list with the given UUID from any of the catalogs.
func Find(id uuid.UUID) (l FilterList, ok bool) {
	for _, lists := range [][]FilterList{defaultLists(), regionalLists()} {
		i := slices.IndexFunc(lists, func(l FilterList) (found bool) {
			return l.UUID == id
		})
		if i != -1 {
			return lists[i].clone(), true
		}
	}

	return FilterList{}, false
}

// ForLanguage returns the regional lists that target the language of the
// given BCP 47 tag, e.g. "de" or "de-AT".  It returns nil if the tag cannot
// be parsed.
func ForLanguage(tag string) (lists []FilterList) {
	t, err := language.Parse(tag)
	if err != nil {
		return nil
	}

	base, _ := t.Base()
	code := base.String()
	for _, l := range regionalLists() {
		if slices.ContainsFunc(l.Langs, func(lang string) (ok bool) {
			return strings.EqualFold(lang, code)
		}) {
			lists = append(lists, l.clone())
		}
	}

	return lists
}

// defaultLists returns the process-wide table of the default lists.  It must
// not be modified.
var defaultLists = sync.OnceValue(func() (lists []FilterList) {
	return []FilterList{{
		Title:      "EasyList",
		URL:        "https://easylist.to/easylist/easylist.txt",
		SupportURL: "https://easylist.to/",
		Desc:       "Removes most advertisements from international webpages.",
		UUID:       uuid.MustParse("67F880F5-7602-4042-8A3D-01481FD7437A"),
	}, {
		Title:      "EasyPrivacy",
		URL:        "https://easylist.to/easylist/easyprivacy.txt",
		SupportURL: "https://easylist.to/",
		Desc:       "Removes all forms of tracking from the internet.",
		UUID:       uuid.MustParse("48010209-AD34-4DF5-A80C-3D2A7C3920C0"),
	}, {
		Title:      "uBlock Origin filters",
		URL:        "https://ublockorigin.github.io/uAssets/filters/filters.txt",
		SupportURL: "https://github.com/uBlockOrigin/uAssets",
		Desc:       "Filters maintained by the uBlock Origin project.",
		UUID:       uuid.MustParse("200392E7-9A0F-40DF-86EB-6AF7E4071322"),
	}, {
		Title:      "uBlock Origin unbreak",
		URL:        "https://ublockorigin.github.io/uAssets/filters/unbreak.txt",
		SupportURL: "https://github.com/uBlockOrigin/uAssets",
		Desc:       "Exceptions that fix the sites broken by the other lists.",
		UUID:       uuid.MustParse("2FBEB0BC-E2E1-4170-BAA9-05E76AAB5BA5"),
	}}
})

// regionalLists returns the process-wide table of the regional lists.  It
// must not be modified.
var regionalLists = sync.OnceValue(func() (lists []FilterList) {
	return []FilterList{{
		Title:      "EasyList Germany",
		URL:        "https://easylist.to/easylistgermany/easylistgermany.txt",
		SupportURL: "https://forums.lanik.us/viewforum.php?f=90",
		Desc:       "Removes advertisements from German webpages.",
		Langs:      []string{"de"},
		UUID:       uuid.MustParse("E71426E7-E898-401C-A195-177945415F38"),
	}, {
		Title:      "Liste FR",
		URL:        "https://easylist-downloads.adblockplus.org/liste_fr.txt",
		SupportURL: "https://forums.lanik.us/viewforum.php?f=91",
		Desc:       "Removes advertisements from French webpages.",
		Langs:      []string{"fr"},
		UUID:       uuid.MustParse("9852EFC4-99E4-4F2D-A915-9C3196C7A1DE"),
	}, {
		Title:      "EasyList Spanish",
		URL:        "https://easylist-downloads.adblockplus.org/easylistspanish.txt",
		SupportURL: "https://forums.lanik.us/viewforum.php?f=103",
		Desc:       "Removes advertisements from Spanish webpages.",
		Langs:      []string{"es"},
		UUID:       uuid.MustParse("AE657374-1851-4DC4-892B-9212B13B15A7"),
	}, {
		Title:      "RU AdList",
		URL:        "https://easylist-downloads.adblockplus.org/advblock.txt",
		SupportURL: "https://forums.lanik.us/viewforum.php?f=102",
		Desc:       "Removes advertisements from Russian and Ukrainian webpages.",
		Langs:      []string{"ru", "uk", "be"},
		UUID:       uuid.MustParse("80470EEC-970F-4F2C-BF6B-4810520C72E6"),
	}, {
		Title:      "Japanese Filters",
		URL:        "https://raw.githubusercontent.com/tofukko/filter/master/Adblock_Plus_list.txt",
		SupportURL: "https://github.com/tofukko/filter",
		Desc:       "Removes advertisements from Japanese webpages.",
		Langs:      []string{"ja"},
		UUID:       uuid.MustParse("03F91310-9244-40FA-BCF6-DA31B832F34D"),
	}}
})
