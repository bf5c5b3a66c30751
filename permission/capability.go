package permission

// Capability is one operation class a route can require.
type Capability int

const (
	CapReadOwnStatus Capability = iota
	CapReadProfile
	CapEditProfile
	CapBrowseJobs
	CapApplyJobs
	CapPostJobs
	CapReviewApplicants
	CapEndorseStudents
	CapReviewDocuments
	CapManageAccounts
	CapRunAdminQueries

	capabilityCount
)

var capabilityNames = [capabilityCount]string{
	CapReadOwnStatus:    "read_own_status",
	CapReadProfile:      "read_profile",
	CapEditProfile:      "edit_profile",
	CapBrowseJobs:       "browse_jobs",
	CapApplyJobs:        "apply_jobs",
	CapPostJobs:         "post_jobs",
	CapReviewApplicants: "review_applicants",
	CapEndorseStudents:  "endorse_students",
	CapReviewDocuments:  "review_documents",
	CapManageAccounts:   "manage_accounts",
	CapRunAdminQueries:  "run_admin_queries",
}

func (c Capability) String() string {
	if c < 0 || c >= capabilityCount {
		return ""
	}
	return capabilityNames[c]
}

// ParseCapability returns the capability with the given snake_case name.
func ParseCapability(name string) (Capability, bool) {
	for c := Capability(0); c < capabilityCount; c++ {
		if capabilityNames[c] == name {
			return c, true
		}
	}
	return -1, false
}

var roleMasks = func() map[Role]Mask64 {
	grants := map[Role][]Capability{
		RoleStudent: {
			CapReadProfile, CapEditProfile, CapBrowseJobs, CapApplyJobs,
		},
		RoleEmployer: {
			CapReadProfile, CapEditProfile, CapBrowseJobs, CapPostJobs, CapReviewApplicants,
		},
		RoleProfessor: {
			CapReadProfile, CapEditProfile, CapBrowseJobs, CapEndorseStudents, CapReviewDocuments,
		},
		RoleAdmin: {
			CapReadProfile, CapEditProfile, CapBrowseJobs, CapReviewDocuments,
			CapManageAccounts, CapRunAdminQueries,
		},
	}

	out := make(map[Role]Mask64, len(grants))
	for role, caps := range grants {
		var m Mask64
		m.Set(CapReadOwnStatus)
		for _, c := range caps {
			m.Set(c)
		}
		out[role] = m
	}
	return out
}()

// Resolve computes the capability set for an account. It is a pure function
// of its inputs:
//
//   - SUSPENDED, REJECTED, or an unknown role/status yields the empty set.
//   - PENDING or unverified accounts may only read their own pending state.
//   - APPROVED and verified accounts get the full set for their role.
func Resolve(role Role, status Status, verified bool) Mask64 {
	if !role.Valid() || !status.Valid() || status.Disabled() {
		return 0
	}

	if status != StatusApproved || !verified {
		var m Mask64
		m.Set(CapReadOwnStatus)
		return m
	}

	return roleMasks[role]
}

// Names lists the capability names contained in m, in declaration order.
func Names(m Mask64) []string {
	out := make([]string, 0, m.Len())
	for c := Capability(0); c < capabilityCount; c++ {
		if m.Has(c) {
			out = append(out, capabilityNames[c])
		}
	}
	return out
}
