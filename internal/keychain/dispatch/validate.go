package dispatch

import (
	"errors"
	"fmt"
	"regexp"
)

var permlinkRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// maxBeneficiaryWeight is the total weight cap, in basis points (100%).
const maxBeneficiaryWeight = 10000

var (
	errInvalidPermlink    = errors.New("Invalid permlink format")
	errNoBeneficiaries    = errors.New("Beneficiaries list is empty")
	errWitnessVoteNotBool = errors.New("Witness vote must be a boolean")
	errSelfProxy          = errors.New("Cannot set proxy to own account")
)

func validatePermlink(params map[string]any) error {
	permlink, _ := params["permlink"].(string)
	if !permlinkRe.MatchString(permlink) {
		return errInvalidPermlink
	}
	return nil
}

// validateBeneficiaries checks that the list is non-empty, every entry names
// an account with a numeric weight, and the weights sum to at most 10000.
func validateBeneficiaries(params map[string]any) error {
	entries, ok := params["beneficiaries"].([]any)
	if !ok || len(entries) == 0 {
		return errNoBeneficiaries
	}

	total := 0.0
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			return errors.New("Invalid beneficiary entry")
		}
		account, _ := entry["account"].(string)
		if account == "" {
			return errors.New("Beneficiary entry is missing an account")
		}
		weight, ok := entry["weight"].(float64)
		if !ok {
			return fmt.Errorf("Beneficiary %s has a non-numeric weight", account)
		}
		total += weight
	}
	if total > maxBeneficiaryWeight {
		return fmt.Errorf("Beneficiary weights exceed %d", maxBeneficiaryWeight)
	}
	return nil
}

func validateWitnessVote(params map[string]any) error {
	if _, ok := params["vote"].(bool); !ok {
		return errWitnessVoteNotBool
	}
	return nil
}

func validateWitnessProxy(params map[string]any, account string) error {
	proxy, _ := params["proxy"].(string)
	if proxy == account {
		return errSelfProxy
	}
	return nil
}
