package rugcheck

import "slopesniper/internal/policy"

// ToPolicyResult adapts a report summary into the shape the policy
// engine's rugcheck gate reads.
func ToPolicyResult(s *Summary) *policy.RugcheckResult {
	if s == nil {
		return nil
	}
	score := s.Score
	return &policy.RugcheckResult{
		Score: &score,
		Summary: policy.RugcheckSummary{
			MintAuthority:   s.MintAuthority,
			FreezeAuthority: s.FreezeAuthority,
		},
	}
}
