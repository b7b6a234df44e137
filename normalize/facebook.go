package normalize

import (
	"sort"
	"strings"

	"github.com/brettboylen/zs-parser/extract"
	"github.com/brettboylen/zs-parser/models"
)

var (
	fbURLs          = extract.MustCompile("$..wwwURL")
	fbCreationTimes = extract.MustCompile("$..story.creation_time")
	fbAttachments   = extract.MustCompile("$..attachments..url")
	fbText          = extract.MustCompile("comet_sections.content.story.message.text")
	fbReactionEdges = extract.MustCompile("$..comet_ufi_summary_and_actions_renderer.feedback.top_reactions.edges")
	fbReactionTotal = extract.MustCompile("$..comet_ufi_summary_and_actions_renderer.feedback.reaction_count.count")
	fbEdgeLabel     = extract.MustCompile("node.localized_name")
	fbEdgeCount     = extract.MustCompile("reaction_count")
	fbCommentCount  = extract.MustCompile("$..comments_count_summary_renderer.feedback.comment_rendering_instance.comments.total_count")
	fbShareCount    = extract.MustCompile("$..i18n_share_count")
	fbShareFallback = extract.MustCompile("$..share_count.count")
)

// Facebook normalizes a Facebook GraphQL post payload
func Facebook(raw models.RawRecord) models.Record {
	data := raw.Data()
	postID := data["post_id"]

	reactions := facebookReactions(data)
	total := reactions.Total()
	if len(reactions) == 0 {
		if v, ok := fbReactionTotal.First(data); ok {
			total = ToCount(v)
		}
	}

	shares := fbShareCount.Values(data)
	if len(shares) == 0 {
		shares = fbShareFallback.Values(data)
	}

	return models.Record{
		PostID:             postID,
		PostURL:            envelopeURL(raw, func() string { return pickURL(fbURLs.Strings(data), str(postID)) }),
		CreationTime:       earliest(fbCreationTimes.Values(data)),
		Attachments:        urlSet(fbAttachments.Values(data)),
		Text:               firstString(fbText.Values(data)),
		TotalReactionCount: total,
		Reactions:          reactions,
		CommentCount:       firstCount(fbCommentCount.Values(data)),
		ShareCount:         firstCount(shares),
	}
}

func facebookReactions(data map[string]any) models.Reactions {
	reactions := models.Reactions{}
	for _, match := range fbReactionEdges.Values(data) {
		edges, ok := match.([]any)
		if !ok {
			continue
		}
		for _, edge := range edges {
			label, ok := fbEdgeLabel.First(edge)
			if !ok {
				continue
			}
			count, _ := fbEdgeCount.First(edge)
			reactions = reactions.Add(str(label), ToCount(count))
		}
		// shared and attached stories nest their own feedback deeper, so the
		// shallowest edge list belongs to the post itself
		break
	}
	return reactions
}

// pickURL chooses the post permalink among every wwwURL in the payload.
// Shared or attached stories carry their own wwwURL, so the candidate naming
// the post id wins, then the shortest one.
func pickURL(candidates []string, postID string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	if postID != "" {
		for _, c := range sorted {
			if strings.Contains(c, postID) {
				return c
			}
		}
	}
	return sorted[0]
}

// envelopeURL prefers a permalink precomputed by the scraper
func envelopeURL(raw models.RawRecord, fallback func() string) string {
	for _, key := range []string{"post_url", "url"} {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback()
}

// firstCount reads the shallowest match, see facebookReactions
func firstCount(values []any) int {
	if len(values) == 0 {
		return 0
	}
	return ToCount(values[0])
}
