package leetcode

// ══════════════════════════════════════════════════════════════════════════════
// GRAPHQL REQUEST
// ══════════════════════════════════════════════════════════════════════════════

// userProfileQuery asks for the accepted-submission counts of one user.
// Bucket 0 of acSubmissionNum is the "All" difficulty total.
const userProfileQuery = `query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    submitStatsGlobal {
      acSubmissionNum {
        count
      }
    }
  }
}`

// GraphQLRequest is the POST body sent to the GraphQL endpoint.
type GraphQLRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

func newUserProfileRequest(username string) GraphQLRequest {
	return GraphQLRequest{
		OperationName: "getUserProfile",
		Query:         userProfileQuery,
		Variables:     map[string]any{"username": username},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GRAPHQL RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// UserProfileResponse is the envelope returned for getUserProfile.
type UserProfileResponse struct {
	Data   *UserProfileData `json:"data"`
	Errors []GraphQLError   `json:"errors,omitempty"`
}

// UserProfileData holds the query result; MatchedUser is null for unknown users.
type UserProfileData struct {
	MatchedUser *MatchedUserDTO `json:"matchedUser"`
}

// MatchedUserDTO is the user node.
type MatchedUserDTO struct {
	SubmitStatsGlobal *SubmitStatsDTO `json:"submitStatsGlobal"`
}

// SubmitStatsDTO holds per-difficulty counters.
type SubmitStatsDTO struct {
	AcSubmissionNum []SubmissionCountDTO `json:"acSubmissionNum"`
}

// SubmissionCountDTO is one difficulty bucket.
type SubmissionCountDTO struct {
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count"`
}

// GraphQLError is an entry of the GraphQL "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
}

// solvedCount extracts the total solved count, reporting a failure reason
// when the payload does not carry one.
func (r *UserProfileResponse) solvedCount() (int, Reason, string) {
	if r.Data == nil {
		if len(r.Errors) > 0 {
			return 0, ReasonGraphQL, r.Errors[0].Message
		}
		return 0, ReasonMalformed, "response has no data"
	}
	if r.Data.MatchedUser == nil {
		return 0, ReasonNotFound, "no matching user"
	}
	stats := r.Data.MatchedUser.SubmitStatsGlobal
	if stats == nil || len(stats.AcSubmissionNum) == 0 {
		return 0, ReasonMalformed, "submission stats missing"
	}
	count := stats.AcSubmissionNum[0].Count
	if count < 0 {
		return 0, ReasonMalformed, "negative solved count"
	}
	return count, "", ""
}
