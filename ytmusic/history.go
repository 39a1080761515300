package ytmusic

import (
	"encoding/json"
	"regexp"
	"strings"
)

type browseResponse struct {
	Contents struct {
		SingleColumnBrowseResultsRenderer struct {
			Tabs []struct {
				TabRenderer struct {
					Content struct {
						SectionListRenderer struct {
							Contents []struct {
								MusicShelfRenderer *struct {
									Contents []struct {
										Item *listItem `json:"musicResponsiveListItemRenderer"`
									} `json:"contents"`
								} `json:"musicShelfRenderer"`
							} `json:"contents"`
						} `json:"sectionListRenderer"`
					} `json:"content"`
				} `json:"tabRenderer"`
			} `json:"tabs"`
		} `json:"singleColumnBrowseResultsRenderer"`
	} `json:"contents"`
}

type listItem struct {
	FlexColumns []struct {
		Column struct {
			Text struct {
				Runs []run `json:"runs"`
			} `json:"text"`
		} `json:"musicResponsiveListItemFlexColumnRenderer"`
	} `json:"flexColumns"`
	Thumbnail struct {
		Renderer struct {
			Thumbnail struct {
				Thumbnails []thumbnail `json:"thumbnails"`
			} `json:"thumbnail"`
		} `json:"musicThumbnailRenderer"`
	} `json:"thumbnail"`
	PlaylistItemData struct {
		VideoID string `json:"videoId"`
	} `json:"playlistItemData"`
}

type run struct {
	Text               string `json:"text"`
	NavigationEndpoint *struct {
		WatchEndpoint *struct {
			VideoID string `json:"videoId"`
		} `json:"watchEndpoint"`
		BrowseEndpoint *struct {
			BrowseID string `json:"browseId"`
			Configs  struct {
				Music struct {
					PageType string `json:"pageType"`
				} `json:"browseEndpointContextMusicConfig"`
			} `json:"browseEndpointContextSupportedConfigs"`
		} `json:"browseEndpoint"`
	} `json:"navigationEndpoint"`
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// historyEntry is the most recent item of the listening history.
type historyEntry struct {
	VideoID   string
	Title     string
	Artists   []string
	Album     string
	Thumbnail string
}

// parseHistory returns the newest history entry, or nil when the history is empty.
func parseHistory(body []byte) (*historyEntry, error) {
	var resp browseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, tab := range resp.Contents.SingleColumnBrowseResultsRenderer.Tabs {
		for _, section := range tab.TabRenderer.Content.SectionListRenderer.Contents {
			if section.MusicShelfRenderer == nil {
				continue
			}
			for _, c := range section.MusicShelfRenderer.Contents {
				if c.Item == nil {
					continue
				}
				if entry := c.Item.entry(); entry != nil {
					return entry, nil
				}
			}
		}
	}
	return nil, nil
}

func (it *listItem) entry() *historyEntry {
	if len(it.FlexColumns) == 0 {
		return nil
	}

	titleRuns := it.FlexColumns[0].Column.Text.Runs
	if len(titleRuns) == 0 {
		return nil
	}
	e := &historyEntry{
		VideoID: it.PlaylistItemData.VideoID,
		Title:   titleRuns[0].Text,
	}
	if nav := titleRuns[0].NavigationEndpoint; nav != nil && nav.WatchEndpoint != nil && nav.WatchEndpoint.VideoID != "" {
		e.VideoID = nav.WatchEndpoint.VideoID
	}
	if e.VideoID == "" {
		return nil
	}

	if len(it.FlexColumns) > 1 {
		e.Artists, e.Album = splitSubtitle(it.FlexColumns[1].Column.Text.Runs)
	}
	if len(it.FlexColumns) > 2 && e.Album == "" {
		for _, r := range it.FlexColumns[2].Column.Text.Runs {
			if r.pageType() == "MUSIC_PAGE_TYPE_ALBUM" {
				e.Album = r.Text
			}
		}
	}

	thumbs := it.Thumbnail.Renderer.Thumbnail.Thumbnails
	if len(thumbs) > 0 {
		e.Thumbnail = stripSize(thumbs[len(thumbs)-1].URL)
	}
	return e
}

func (r run) pageType() string {
	if r.NavigationEndpoint == nil || r.NavigationEndpoint.BrowseEndpoint == nil {
		return ""
	}
	return r.NavigationEndpoint.BrowseEndpoint.Configs.Music.PageType
}

// splitSubtitle reads the second column, which lists artists and sometimes an
// album separated by " • ". Artist runs link to artist or channel pages; when
// none do, the first segment is taken verbatim.
func splitSubtitle(runs []run) (artists []string, album string) {
	for _, r := range runs {
		switch r.pageType() {
		case "MUSIC_PAGE_TYPE_ARTIST", "MUSIC_PAGE_TYPE_USER_CHANNEL":
			artists = append(artists, r.Text)
		case "MUSIC_PAGE_TYPE_ALBUM":
			album = r.Text
		}
	}
	if len(artists) > 0 {
		return artists, album
	}

	var text strings.Builder
	for _, r := range runs {
		text.WriteString(r.Text)
	}
	first, _, _ := strings.Cut(text.String(), " • ")
	if first = strings.TrimSpace(first); first != "" {
		artists = []string{first}
	}
	return artists, album
}

// stripSize drops the "=w60-h60-l90-rj" style resize suffix so the original
// resolution is served.
func stripSize(url string) string {
	return sizeSuffix.ReplaceAllString(url, "")
}

var sizeSuffix = regexp.MustCompile(`=[ws]\d+[-\w]*$`)
