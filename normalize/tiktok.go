package normalize

import (
	"fmt"

	"github.com/brettboylen/zs-parser/extract"
	"github.com/brettboylen/zs-parser/models"
)

var (
	ttAuthorHandle = extract.MustCompile("author.uniqueId")
	ttAuthorID     = extract.MustCompile("author.id")
	ttCreateTime   = extract.MustCompile("createTime")
	ttText         = extract.MustCompile("desc")
	ttCover        = extract.MustCompile("video.cover")
	ttPlayAddr     = extract.MustCompile("video.playAddr")
	ttImages       = extract.MustCompile("imagePost.images[*].imageURL.urlList[*]")
)

// tiktokCounter is read from "stats" first and from the string valued
// "statsV2" block second
type tiktokCounter struct {
	stats   *extract.Path
	statsV2 *extract.Path
}

func newTikTokCounter(key string) tiktokCounter {
	return tiktokCounter{
		stats:   extract.MustCompile("stats." + key),
		statsV2: extract.MustCompile("statsV2." + key),
	}
}

var (
	ttLikes    = newTikTokCounter("diggCount")
	ttComments = newTikTokCounter("commentCount")
	ttShares   = newTikTokCounter("shareCount")
	ttPlays    = newTikTokCounter("playCount")
)

func (c tiktokCounter) count(data map[string]any) int {
	if v, ok := c.stats.First(data); ok {
		return ToCount(v)
	}
	if v, ok := c.statsV2.First(data); ok {
		return ToCount(v)
	}
	return 0
}

// TikTok normalizes a TikTok item payload
func TikTok(raw models.RawRecord) models.Record {
	data := raw.Data()
	postID := data["id"]

	handle := ""
	if v, ok := ttAuthorHandle.First(data); ok {
		handle = str(v)
	}
	authorID := ""
	if v, ok := ttAuthorID.First(data); ok {
		authorID = str(v)
	}

	creation := models.UnknownTime
	if v, ok := ttCreateTime.First(data); ok {
		if ts, ok := toUnix(v); ok {
			creation = FormatTimestamp(ts)
		}
	}

	return models.Record{
		PostID: postID,
		PostURL: envelopeURL(raw, func() string {
			id := str(postID)
			if handle == "" || id == "" {
				return ""
			}
			return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", handle, id)
		}),
		CreationTime: creation,
		Attachments:  urlSet(ttCover.Values(data), ttPlayAddr.Values(data), ttImages.Values(data)),
		Text:         firstString(ttText.Values(data)),
		LikeCount:    ttLikes.count(data),
		CommentCount: ttComments.count(data),
		ShareCount:   ttShares.count(data),
		PlayCount:    ttPlays.count(data),
		AuthorName:   handle,
		AuthorID:     authorID,
	}
}
