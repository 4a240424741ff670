package api

import (
	"context"
	"fmt"

	"github.com/sensorgrid/datasync/internal/dataset"
)

// Project is a top-level workspace on the platform.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Dataset is a collection of samples within a project.
type Dataset struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SampleCount int64  `json:"sample_count,omitempty"`
}

// AnnotationSet is one labeled view over a dataset's samples.
type AnnotationSet struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`
}

// ListProjects returns the projects visible to the session.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var result struct {
		Projects []Project `json:"projects"`
	}
	if err := c.call(ctx, "projects.list", nil, &result); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return result.Projects, nil
}

// ListDatasets returns the datasets of a project.
func (c *Client) ListDatasets(ctx context.Context, projectID string) ([]Dataset, error) {
	var result struct {
		Datasets []Dataset `json:"datasets"`
	}
	params := map[string]string{"project_id": projectID}
	if err := c.call(ctx, "datasets.list", params, &result); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return result.Datasets, nil
}

// ListAnnotationSets returns the annotation sets of a dataset.
func (c *Client) ListAnnotationSets(ctx context.Context, datasetID string) ([]AnnotationSet, error) {
	var result struct {
		AnnotationSets []AnnotationSet `json:"annotation_sets"`
	}
	params := map[string]string{"dataset_id": datasetID}
	if err := c.call(ctx, "annotation_sets.list", params, &result); err != nil {
		return nil, fmt.Errorf("list annotation sets: %w", err)
	}
	return result.AnnotationSets, nil
}

// samplesPage is one page of the samples.list result.
type samplesPage struct {
	Samples       []dataset.Sample `json:"samples"`
	ContinueToken string           `json:"continue_token,omitempty"`
}

// ListSamples pages through every sample of a dataset, optionally
// scoped to one annotation set. The continue token loop ends when the
// server stops returning one.
func (c *Client) ListSamples(ctx context.Context, datasetID, annotationSetID string) ([]dataset.Sample, error) {
	var all []dataset.Sample
	token := ""
	for {
		params := map[string]string{"dataset_id": datasetID}
		if annotationSetID != "" {
			params["annotation_set_id"] = annotationSetID
		}
		if token != "" {
			params["continue_token"] = token
		}

		var page samplesPage
		if err := c.call(ctx, "samples.list", params, &page); err != nil {
			return nil, fmt.Errorf("list samples: %w", err)
		}
		all = append(all, page.Samples...)
		if page.ContinueToken == "" {
			return all, nil
		}
		token = page.ContinueToken
	}
}

// PopulateSamples registers new samples on the platform. Samples must
// carry client-generated UUIDs so file uploads can be matched to them.
func (c *Client) PopulateSamples(ctx context.Context, datasetID string, samples []dataset.Sample) error {
	params := map[string]any{
		"dataset_id": datasetID,
		"samples":    samples,
	}
	if err := c.call(ctx, "samples.populate", params, nil); err != nil {
		return fmt.Errorf("populate samples: %w", err)
	}
	return nil
}
