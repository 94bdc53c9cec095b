package purchase

import (
	"context"
	"fmt"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mystore"
)

func (s *service) addToCart(c context.Context, userUID string, courseUID string) (CartItem, error) {
	err := s.checkConfigured()
	if err != nil {
		return CartItem{}, err
	}
	if userUID == "" || courseUID == "" {
		return CartItem{}, myerrors.NewInvalidInputErrorf("user_id and course_id are required")
	}

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Add course %s to cart of user %s", courseUID, userUID)

	item := CartItem{
		UID:       cartItemUID(userUID, courseUID),
		UserUID:   userUID,
		CourseUID: courseUID,
		AddedAt:   s.nower.Now(),
	}
	err = s.stores.Cart.Put(c, item.UID, item)
	if err != nil {
		return CartItem{}, myerrors.NewInternalError(fmt.Errorf("error storing cart item: %w", err))
	}

	return item, nil
}

func (s *service) getCart(c context.Context, userUID string) ([]CartEntry, error) {
	err := s.checkConfigured()
	if err != nil {
		return nil, err
	}

	items, err := s.cartItemsOf(c, userUID)
	if err != nil {
		return nil, err
	}

	entries := make([]CartEntry, 0, len(items))
	for _, item := range items {
		entry := CartEntry{CartItem: item}

		course, found, err := s.stores.Courses.Get(c, item.CourseUID)
		if err != nil {
			return nil, myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", item.CourseUID, err))
		}
		if found {
			entry.Course = &course
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *service) removeFromCart(c context.Context, userUID string, courseUID string) error {
	err := s.checkConfigured()
	if err != nil {
		return err
	}
	if userUID == "" || courseUID == "" {
		return myerrors.NewInvalidInputErrorf("user_id and course_id are required")
	}

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Remove course %s from cart of user %s", courseUID, userUID)

	err = s.stores.Cart.Delete(c, cartItemUID(userUID, courseUID))
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error removing cart item: %w", err))
	}
	return nil
}

func (s *service) clearCart(c context.Context, userUID string) error {
	err := s.checkConfigured()
	if err != nil {
		return err
	}

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Clear cart of user %s", userUID)

	return s.stores.Cart.RunInTransaction(c, func(c context.Context) error {
		items, err := s.cartItemsOf(c, userUID)
		if err != nil {
			return err
		}
		for _, item := range items {
			err = s.stores.Cart.Delete(c, item.UID)
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error removing cart item %s: %w", item.UID, err))
			}
		}
		return nil
	})
}

func (s *service) cartItemsOf(c context.Context, userUID string) ([]CartItem, error) {
	items, err := s.stores.Cart.Query(c, []mystore.Filter{{Field: "UserUID", Compare: "=", Value: userUID}}, "AddedAt")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching cart of user %s: %w", userUID, err))
	}
	return items, nil
}
