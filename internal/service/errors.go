package service

import (
	"errors"

	"familytree/internal/apperr"
	"familytree/internal/repository"
	"familytree/internal/validation"
)

var (
	ErrMemberNotFound   = apperr.New(apperr.CodeNotFound, "Member not found", "العضو غير موجود")
	ErrParentNotFound   = apperr.New(apperr.CodeInvalid, "Parent member does not exist", "العضو الأب غير موجود")
	ErrGeneration       = apperr.New(apperr.CodeInvalid, "Generation must be one more than the parent's generation", "الجيل يجب أن يكون أكبر من جيل الأب بواحد")
	ErrCycle            = apperr.New(apperr.CodeInvalid, "A member cannot be their own ancestor", "لا يمكن أن يكون العضو جداً لنفسه")
	ErrVersionConflict  = apperr.New(apperr.CodeConflict, "This member was changed by someone else. Reload and try again", "تم تعديل هذا العضو من قبل شخص آخر، يرجى إعادة التحميل والمحاولة مجدداً")
	ErrHasChildren      = apperr.New(apperr.CodeConflict, "Members with children cannot be deleted", "لا يمكن حذف عضو لديه أبناء")
	ErrGenerationLocked = apperr.New(apperr.CodeConflict, "Generation cannot change while the member has children", "لا يمكن تغيير جيل عضو لديه أبناء")
	ErrIDAllocation     = apperr.New(apperr.CodeConflict, "Could not allocate a member ID, please try again", "تعذر إنشاء رقم للعضو، يرجى المحاولة مجدداً")
	ErrHistoryNotFound  = apperr.New(apperr.CodeNotFound, "History entry not found", "سجل التعديل غير موجود")
	ErrNotRevertible    = apperr.New(apperr.CodeInvalid, "Only update entries can be reverted", "يمكن التراجع عن التعديلات فقط")
	ErrSnapshotNotFound = apperr.New(apperr.CodeNotFound, "Snapshot not found", "النسخة غير موجودة")
	ErrPendingNotFound  = apperr.New(apperr.CodeNotFound, "Submission not found", "الطلب غير موجود")
	ErrAlreadyReviewed  = apperr.New(apperr.CodeConflict, "This submission has already been reviewed", "تمت مراجعة هذا الطلب مسبقاً")
	ErrLinkNotFound     = apperr.New(apperr.CodeNotFound, "Link not found", "الرابط غير موجود")
	ErrLinkUnusable     = apperr.New(apperr.CodeForbidden, "This link has expired or is no longer active", "انتهت صلاحية هذا الرابط أو لم يعد فعالاً")
	ErrImageNotFound    = apperr.New(apperr.CodeNotFound, "Image not found", "الصورة غير موجودة")
	ErrImageType        = apperr.New(apperr.CodeInvalid, "Only JPEG, PNG, WebP and GIF images are allowed", "يسمح فقط بصور JPEG و PNG و WebP و GIF")
	ErrImageTooLarge    = apperr.New(apperr.CodeTooLarge, "Image is too large", "حجم الصورة كبير جداً")
	ErrImageReviewed    = apperr.New(apperr.CodeConflict, "This image has already been reviewed", "تمت مراجعة هذه الصورة مسبقاً")
	ErrUnknownFlag      = apperr.New(apperr.CodeNotFound, "Unknown feature flag", "خاصية غير معروفة")
	ErrInvalidLogin     = apperr.New(apperr.CodeUnauthorized, "Invalid email or password", "البريد الإلكتروني أو كلمة المرور غير صحيحة")
	ErrAccountDisabled  = apperr.New(apperr.CodeForbidden, "This account is disabled", "هذا الحساب معطل")
	ErrAdminNotFound    = apperr.New(apperr.CodeNotFound, "Admin user not found", "المستخدم غير موجود")
	ErrEmailTaken       = apperr.New(apperr.CodeConflict, "Email already in use", "البريد الإلكتروني مستخدم مسبقاً")
	ErrLastSuperAdmin   = apperr.New(apperr.CodeConflict, "The last active super admin cannot be removed or demoted", "لا يمكن إزالة آخر مدير عام فعال")
	ErrInvalidRole      = apperr.New(apperr.CodeInvalid, "Unknown role", "صلاحية غير معروفة")
)

// ErrFeatureDisabled reports that a feature flag turned an operation off
func ErrFeatureDisabled(flag string) error {
	return &apperr.Error{
		Code:      apperr.CodeDisabled,
		Message:   "This feature is currently disabled (" + flag + ")",
		MessageAr: "هذه الخاصية معطلة حالياً",
	}
}

// invalid converts validation errors into coded bilingual errors
func invalid(err error) error {
	var ve validation.ValidationError
	if errors.As(err, &ve) {
		return apperr.Wrap(err, apperr.CodeInvalid, ve.Message, ve.MessageAr)
	}
	return err
}

// memberError maps repository member errors onto their coded equivalents
func memberError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrMemberNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrVersionConflict
	case errors.Is(err, repository.ErrHasChildren):
		return ErrHasChildren
	case errors.Is(err, repository.ErrAncestorCycle):
		return ErrCycle
	case errors.Is(err, repository.ErrIDAllocationFailed):
		return ErrIDAllocation
	}
	return err
}

// notFoundAs maps repository.ErrNotFound onto target
func notFoundAs(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
