package artwork

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// extractFromJSONLD looks for a MusicRecording, MusicAlbum or VideoObject
// block and returns its image.
func extractFromJSONLD(doc *goquery.Document) (string, error) {
	var found string

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		var blocks []map[string]interface{}
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "[") {
			if err := json.Unmarshal([]byte(text), &blocks); err != nil {
				log.Tracef("Failed to parse JSON-LD block %d: %v", i, err)
				return true
			}
		} else {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(text), &data); err != nil {
				log.Tracef("Failed to parse JSON-LD block %d: %v", i, err)
				return true
			}
			blocks = []map[string]interface{}{data}
		}

		for _, data := range blocks {
			switch getString(data, "@type") {
			case "MusicRecording", "MusicAlbum", "VideoObject":
			default:
				continue
			}
			if image := getImage(data); image != "" {
				found = image
				return false
			}
		}
		return true
	})

	if found == "" {
		return "", errors.New("no JSON-LD image found")
	}
	return found, nil
}

// extractFromOpenGraph reads og:image and friends.
func extractFromOpenGraph(doc *goquery.Document) (string, error) {
	for _, sel := range []string{
		"meta[property='og:image:secure_url']",
		"meta[property='og:image']",
		"meta[name='twitter:image']",
		"meta[name='twitter:image:src']",
	} {
		if content, _ := doc.Find(sel).First().Attr("content"); strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content), nil
		}
	}
	return "", errors.New("no image found in Open Graph tags")
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}

// getImage accepts the three shapes schema.org allows: a URL string, an
// ImageObject, or a list of either.
func getImage(data map[string]interface{}) string {
	switch v := data["image"].(type) {
	case string:
		return v
	case map[string]interface{}:
		return getString(v, "url")
	case []interface{}:
		for _, item := range v {
			switch img := item.(type) {
			case string:
				return img
			case map[string]interface{}:
				if u := getString(img, "url"); u != "" {
					return u
				}
			}
		}
	}
	return ""
}
