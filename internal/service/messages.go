package service

import (
	"fmt"

	"github.com/pmitsakas/thesisflow/internal/models"
)

func dissertationNotice(recipient string, t models.NotificationType, title, message, dissertationID string) Notice {
	return Notice{
		Recipient:    recipient,
		Type:         t,
		Title:        title,
		Message:      message,
		RelatedID:    dissertationID,
		RelatedModel: models.RelatedDissertation,
	}
}

func applicationApprovedNotice(studentID string, d *models.Dissertation) Notice {
	return dissertationNotice(studentID, models.NotificationApplicationApproved,
		"Application Approved",
		fmt.Sprintf("Your application for %q has been approved!", d.Title),
		d.ID)
}

func applicationRejectedNotice(studentID, dissertationID, title string) Notice {
	return dissertationNotice(studentID, models.NotificationApplicationRejected,
		"Application Rejected",
		fmt.Sprintf("Your application for %q was not accepted.", title),
		dissertationID)
}

func applicationWithdrawnNotice(studentID, dissertationID, title, assignedTitle string) Notice {
	return dissertationNotice(studentID, models.NotificationApplicationRejected,
		"Application Withdrawn",
		fmt.Sprintf("Your application for %q was withdrawn because you were assigned to %q.", title, assignedTitle),
		dissertationID)
}

func dissertationDeletedNotice(studentID string, d *models.Dissertation) Notice {
	return dissertationNotice(studentID, models.NotificationDissertationDeleted,
		"Dissertation Deleted",
		fmt.Sprintf("The dissertation %q you applied for has been deleted by the supervisor.", d.Title),
		d.ID)
}

func dissertationAssignedNotice(studentID string, d *models.Dissertation) Notice {
	return dissertationNotice(studentID, models.NotificationDissertationAssigned,
		"Dissertation Assigned",
		fmt.Sprintf("You have been assigned to the dissertation %q.", d.Title),
		d.ID)
}

func proposalReceivedNotice(supervisorID, studentName string, d *models.Dissertation) Notice {
	return dissertationNotice(supervisorID, models.NotificationProposalReceived,
		"New Dissertation Proposal",
		fmt.Sprintf("%s has proposed a new dissertation: %q", studentName, d.Title),
		d.ID)
}

func proposalApprovedNotice(studentID string, d *models.Dissertation) Notice {
	return dissertationNotice(studentID, models.NotificationProposalApproved,
		"Proposal Approved",
		fmt.Sprintf("Your dissertation proposal %q has been approved!", d.Title),
		d.ID)
}

func proposalRejectedNotice(studentID string, d *models.Dissertation) Notice {
	return dissertationNotice(studentID, models.NotificationProposalRejected,
		"Proposal Rejected",
		fmt.Sprintf("Your dissertation proposal %q was not approved.", d.Title),
		d.ID)
}

func statusChangedNotice(studentID string, d *models.Dissertation, from models.DissertationStatus) Notice {
	return dissertationNotice(studentID, models.NotificationStatusChanged,
		"Dissertation Status Changed",
		fmt.Sprintf("The status of %q changed from %s to %s.", d.Title, from, d.Status),
		d.ID)
}

func progressUpdatedNotice(studentID string, d *models.Dissertation) Notice {
	return dissertationNotice(studentID, models.NotificationProgressUpdated,
		"Progress Updated",
		fmt.Sprintf("Progress on %q is now %d%%.", d.Title, d.ProgressPercentage),
		d.ID)
}
