// Package hotscore ranks active posts by time-decayed engagement and picks
// the outliers shown as hot.
package hotscore

import (
	"math"
	"time"

	"github.com/agora-community/agora/pkg/config"
)

// Scorer computes hot scores from engagement counters
type Scorer struct {
	likeWeight    float64
	commentWeight float64
	viewWeight    float64
	ageOffset     float64
	gravity       float64
}

// NewScorer creates a scorer from the configured weights
func NewScorer(cfg *config.HotScoreConfig) *Scorer {
	return &Scorer{
		likeWeight:    cfg.LikeWeight,
		commentWeight: cfg.CommentWeight,
		viewWeight:    cfg.ViewWeight,
		ageOffset:     cfg.AgeOffsetHours,
		gravity:       cfg.Gravity,
	}
}

// Score returns (likes*wl + comments*wc + views*wv) / (ageHours + offset)^gravity.
// Negative ages count as zero.
func (s *Scorer) Score(likes, comments, views int, age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	engagement := float64(likes)*s.likeWeight + float64(comments)*s.commentWeight + float64(views)*s.viewWeight
	return engagement / math.Pow(hours+s.ageOffset, s.gravity)
}
