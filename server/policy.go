package server

import (
	"encoding/json"
	"errors"
	"fmt"
)

// errInvalidConfig marks retention configuration errors. Handlers report them
// as a bad request instead of an internal failure.
var errInvalidConfig = errors.New("invalid retention configuration")

const (
	defaultDaysToKeep       = 30
	defaultMinBackupsToKeep = 3
)

// RetentionPolicy describes how long the backups in one folder are kept.
// A policy never deletes the MinBackupsToKeep most recent backups, even when
// they are older than DaysToKeep days.
type RetentionPolicy struct {
	Folder           string
	DaysToKeep       int
	MinBackupsToKeep int
}

// Wire format of the retention configuration document:
//
//	{
//	  "retention_policies": [
//	    {"folder": "databases/", "days_to_keep": 30, "min_backups_to_keep": 3},
//	    {"folder": "configs/", "days_to_keep": 90}
//	  ]
//	}
//
// Pointer fields distinguish absent values, which take defaults, from
// explicit zeroes.
type retentionPolicyDoc struct {
	Folder           *string `json:"folder"`
	DaysToKeep       *int    `json:"days_to_keep"`
	MinBackupsToKeep *int    `json:"min_backups_to_keep"`
}

type retentionConfigDoc struct {
	RetentionPolicies []retentionPolicyDoc `json:"retention_policies"`
}

// parseRetentionPolicies parses and validates a retention configuration
// document. Defaults are applied here so invalid records fail fast instead of
// leaking into the evaluator. A document without the retention_policies key
// yields zero policies and no error.
func parseRetentionPolicies(data []byte) ([]RetentionPolicy, error) {
	var doc retentionConfigDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config JSON: %w", errInvalidConfig, err)
	}

	policies := make([]RetentionPolicy, 0, len(doc.RetentionPolicies))

	for i, record := range doc.RetentionPolicies {
		if record.Folder == nil || *record.Folder == "" {
			return nil, fmt.Errorf("%w: policy %d: missing folder", errInvalidConfig, i)
		}

		policy := RetentionPolicy{
			Folder:           *record.Folder,
			DaysToKeep:       defaultDaysToKeep,
			MinBackupsToKeep: defaultMinBackupsToKeep,
		}

		if record.DaysToKeep != nil {
			policy.DaysToKeep = *record.DaysToKeep
		}

		if record.MinBackupsToKeep != nil {
			policy.MinBackupsToKeep = *record.MinBackupsToKeep
		}

		if policy.DaysToKeep < 0 {
			return nil, fmt.Errorf("%w: policy for folder %q: days_to_keep must not be negative", errInvalidConfig, policy.Folder)
		}

		if policy.MinBackupsToKeep < 0 {
			return nil, fmt.Errorf("%w: policy for folder %q: min_backups_to_keep must not be negative", errInvalidConfig, policy.Folder)
		}

		policies = append(policies, policy)
	}

	return policies, nil
}
