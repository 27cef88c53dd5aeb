package email

const subjectApprovalPendingFmt = "Orçamento de R$ %s aguardando aprovação"
