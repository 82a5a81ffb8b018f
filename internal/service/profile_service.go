package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"shoe-market/internal/domain"
	"shoe-market/internal/repository"
	"shoe-market/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProfileView is the public face of an account.
type ProfileView struct {
	Account     *domain.Account
	Profile     *domain.Profile
	Rating      decimal.Decimal
	ReviewCount int64
	Reviews     []*domain.Review
}

// ProfilePatch holds a partial profile update; nil fields are left untouched.
// An empty PhoneNumber clears the number.
type ProfilePatch struct {
	FirstName   *string
	LastName    *string
	Location    *string
	Bio         *string
	PhoneNumber *string
}

type ProfileService interface {
	Get(ctx context.Context, username string) (*ProfileView, error)
	Update(ctx context.Context, actor uuid.UUID, username string, patch ProfilePatch, avatar *Upload) (*ProfileView, error)
}

type profileService struct {
	accountRepo repository.AccountRepository
	profileRepo repository.ProfileRepository
	ratings     RatingService
	blobs       storage.ObjectStorage
	logger      *zap.Logger
}

func NewProfileService(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	ratings RatingService,
	blobs storage.ObjectStorage,
	logger *zap.Logger,
) ProfileService {
	return &profileService{
		accountRepo: accountRepo,
		profileRepo: profileRepo,
		ratings:     ratings,
		blobs:       blobs,
		logger:      logger.Named("profiles"),
	}
}

func (s *profileService) Get(ctx context.Context, username string) (*ProfileView, error) {
	account, err := s.findAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, account)
}

func (s *profileService) Update(ctx context.Context, actor uuid.UUID, username string, patch ProfilePatch, avatar *Upload) (*ProfileView, error) {
	account, err := s.findAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	if actor == uuid.Nil || actor != account.ID {
		return nil, forbidden("you can only modify your own profile")
	}

	profile, err := s.profileRepo.GetOrCreate(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := s.applyPatch(ctx, account, profile, patch); err != nil {
		return nil, err
	}

	var oldAvatar, newAvatar string
	if avatar != nil {
		keys, err := putAll(ctx, s.blobs, avatarPrefix, []Upload{*avatar}, s.logger)
		if err != nil {
			return nil, err
		}
		oldAvatar, newAvatar = profile.Avatar, keys[0]
		profile.Avatar = newAvatar
	}

	if err := s.save(ctx, account, profile, patch); err != nil {
		if newAvatar != "" {
			removeBlobs(context.WithoutCancel(ctx), s.blobs, []string{newAvatar}, s.logger)
		}
		return nil, err
	}
	if oldAvatar != "" {
		removeBlobs(ctx, s.blobs, []string{oldAvatar}, s.logger)
	}

	return s.view(ctx, account)
}

func (s *profileService) applyPatch(ctx context.Context, account *domain.Account, profile *domain.Profile, patch ProfilePatch) error {
	errs := fieldErrors{}

	if patch.FirstName != nil {
		if utf8.RuneCountInString(*patch.FirstName) > 150 {
			errs.add("first_name", "Ensure this field has no more than 150 characters.")
		}
		account.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		if utf8.RuneCountInString(*patch.LastName) > 150 {
			errs.add("last_name", "Ensure this field has no more than 150 characters.")
		}
		account.LastName = *patch.LastName
	}
	if patch.Location != nil {
		if utf8.RuneCountInString(*patch.Location) > 100 {
			errs.add("location", "Ensure this field has no more than 100 characters.")
		}
		profile.Location = *patch.Location
	}
	if patch.Bio != nil {
		profile.Bio = *patch.Bio
	}
	if patch.PhoneNumber != nil {
		phone := normalizePhone(patch.PhoneNumber)
		switch {
		case phone == nil:
			profile.PhoneNumber = nil
		case len(*phone) > 20:
			errs.add("phone_number", "Ensure this field has no more than 20 characters.")
		default:
			inUse, err := s.profileRepo.PhoneNumberInUse(ctx, *phone, account.ID)
			if err != nil {
				return fmt.Errorf("failed to check phone number: %w", err)
			}
			if inUse {
				errs.add("phone_number", phoneInUseMessage)
			}
			profile.PhoneNumber = phone
		}
	}

	return errs.err()
}

func (s *profileService) save(ctx context.Context, account *domain.Account, profile *domain.Profile, patch ProfilePatch) error {
	var err error
	if patch.FirstName != nil || patch.LastName != nil {
		err = s.accountRepo.UpdateWithProfile(ctx, account, profile)
	} else {
		err = s.profileRepo.Update(ctx, profile)
	}

	switch {
	case errors.Is(err, repository.ErrPhoneNumberTaken):
		return NewValidationError("phone_number", phoneInUseMessage)
	case err != nil:
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (s *profileService) findAccount(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.accountRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, notFound("profile")
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

func (s *profileService) view(ctx context.Context, account *domain.Account) (*ProfileView, error) {
	profile, err := s.profileRepo.GetOrCreate(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	rating, err := s.ratings.SellerRating(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.ratings.ReviewCount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.ratings.RecentReviews(ctx, account.ID, RecentReviewLimit)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		Account:     account,
		Profile:     profile,
		Rating:      rating,
		ReviewCount: count,
		Reviews:     reviews,
	}, nil
}
