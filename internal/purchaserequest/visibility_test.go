package purchaserequest_test

import (
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/purchaserequest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Visibility", func() {
	pending := &purchaserequest.PurchaseRequest{ID: 1, Status: purchaserequest.StatusPending, CreatedByID: staff.ID}
	approvedAtL1 := &purchaserequest.PurchaseRequest{
		ID:          2,
		Status:      purchaserequest.StatusPending,
		CreatedByID: staff.ID,
		Approvals: []purchaserequest.Approval{
			{ApproverID: approver1.ID, Level: coreuser.LevelOne, Decision: purchaserequest.DecisionApproved},
		},
	}
	rejectedByL2 := &purchaserequest.PurchaseRequest{
		ID:          3,
		Status:      purchaserequest.StatusRejected,
		CreatedByID: otherStaff.ID,
		Approvals: []purchaserequest.Approval{
			{ApproverID: approver2.ID, Level: coreuser.LevelTwo, Decision: purchaserequest.DecisionRejected},
		},
	}
	peerL1 := &coreuser.Actor{ID: 12, Role: coreuser.RoleApproverL1}

	DescribeTable("Allows",
		func(actor *coreuser.Actor, pr *purchaserequest.PurchaseRequest, want bool) {
			Expect(purchaserequest.VisibilityFor(actor).Allows(pr)).To(Equal(want))
		},
		Entry("staff sees own", staff, pending, true),
		Entry("staff does not see others", staff, rejectedByL2, false),
		Entry("approver sees unreviewed pending", approver1, pending, true),
		Entry("approver sees what they approved", approver1, approvedAtL1, true),
		Entry("peer does not see a level already approved", peerL1, approvedAtL1, false),
		Entry("other level still sees it", approver2, approvedAtL1, true),
		Entry("reviewer keeps a terminal request", approver2, rejectedByL2, true),
		Entry("others lose a terminal request", approver1, rejectedByL2, false),
		Entry("finance sees everything", finance, rejectedByL2, true),
		Entry("unknown role sees nothing", &coreuser.Actor{ID: 5, Role: coreuser.Role("auditor")}, pending, false),
		Entry("no actor sees nothing", nil, pending, false),
	)

	It("tracks both levels for full approval", func() {
		pr := &purchaserequest.PurchaseRequest{Approvals: []purchaserequest.Approval{
			{Level: coreuser.LevelTwo, Decision: purchaserequest.DecisionApproved},
			{Level: coreuser.LevelOne, Decision: purchaserequest.DecisionRejected},
		}}
		Expect(pr.HasApprovedLevel(coreuser.LevelTwo)).To(BeTrue())
		Expect(pr.FullyApproved()).To(BeFalse())

		pr.Approvals = append(pr.Approvals, purchaserequest.Approval{Level: coreuser.LevelOne, Decision: purchaserequest.DecisionApproved})
		Expect(pr.FullyApproved()).To(BeTrue())
	})
})
