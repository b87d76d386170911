package notifications

const (
	TypeContractSubmitted        = "contract_submitted"
	TypeContractApprovalRequired = "contract_approval_required"
	TypeContractApproved         = "contract_approved"
	TypeContractRejected         = "contract_rejected"
	TypeContractCancelled        = "contract_cancelled"
	TypeCertificationExpiring    = "certification_expiring"
	TypeDocumentExpiring         = "document_expiring"
	TypeTaskAssigned             = "task_assigned"
	TypeTaskOverdue              = "task_overdue"
)
