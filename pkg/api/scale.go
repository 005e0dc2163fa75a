package api

import (
	"context"
	"fmt"

	"github.com/kuncy7/toolid/pkg/models"
)

// LatestWeight returns the most recent reading of a scale
func (c *Client) LatestWeight(ctx context.Context, scaleID int64) (*models.ScaleWeight, error) {
	var weight models.ScaleWeight
	if err := c.getJSON(ctx, fmt.Sprintf("/api/scale/weight/%d/last", scaleID), &weight); err != nil {
		return nil, err
	}

	return &weight, nil
}

// WeightHistory returns up to limit recent readings of a scale, newest first
func (c *Client) WeightHistory(ctx context.Context, scaleID int64, limit int) ([]models.ScaleWeight, error) {
	var weights []models.ScaleWeight
	if err := c.getJSON(ctx, fmt.Sprintf("/api/scale/weight/%d/history?limit=%d", scaleID, limit), &weights); err != nil {
		return nil, err
	}

	return weights, nil
}
